package main

import (
	formakv "github.com/lychee-technology/formakv"
)

const authorColumn = "author"

// defineLibrary declares the Author and Book models. Book refers to Author by
// name, so the two may be defined in either order.
func defineLibrary(registry *formakv.Registry) (author, book *formakv.Model, err error) {
	book, err = registry.Define("Book",
		formakv.NewStringField("title", formakv.Required()),
		formakv.NewStringField("isbn", formakv.WithIndexed(false)),
		formakv.NewIntegerField("pages"),
		formakv.NewFloatField("price"),
		formakv.NewBooleanField("in_print", formakv.WithDefault(true)),
		formakv.NewDateField("published"),
		formakv.NewListField("tags", formakv.Of(formakv.ValueTypeString)),
		formakv.NewReferenceField("author", formakv.ModelNamed("Author"), formakv.WithRelatedName("books")),
		formakv.NewDateTimeField("created_at", formakv.AutoNowAdd()),
		formakv.NewDateTimeField("updated_at", formakv.AutoNow()),
	)
	if err != nil {
		return nil, nil, err
	}
	author, err = registry.Define("Author",
		formakv.NewStringField("name", formakv.Required()),
	)
	if err != nil {
		return nil, nil, err
	}
	return author, book, nil
}

// NewBookMapper maps the sample books CSV layout.
func NewBookMapper() CSVToModelMapper {
	return NewMapperBuilder("Book").
		RequiredWith("Title", "title", Identity()).
		Map("ISBN", "isbn").
		MapWith("Pages", "pages", ToInt64()).
		MapWith("Price", "price", ToFloat64()).
		MapWith("In Print", "in_print", ToBool()).
		MapWith("Published", "published", ToDate("2006-01-02")).
		MapWith("Tags", "tags", Split(";")).
		RequiredWith("Author", authorColumn, Identity()).
		Build()
}

const sampleCSV = `Title,ISBN,Pages,Price,In Print,Published,Tags,Author
The Go Programming Language,978-0134190440,380,$34.99,yes,2015-10-26,go;programming,Alan Donovan
Concurrency in Go,978-1491941195,238,$39.99,yes,2017-07-19,go;concurrency,Katherine Cox-Buday
Designing Data-Intensive Applications,978-1449373320,616,$45.50,yes,2017-03-16,databases;distributed,Martin Kleppmann
Untitled Draft,,12,free,no,,,Anonymous
`
