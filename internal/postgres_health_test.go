package internal

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresHealthCheck(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		wantErr string
	}{
		{
			name: "healthy",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectPing()
				mock.ExpectExec("SELECT 1").WillReturnResult(pgxmock.NewResult("SELECT", 1))
			},
		},
		{
			name: "ping fails",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectPing().WillReturnError(errors.New("connection refused"))
			},
			wantErr: "postgres ping failed",
		},
		{
			name: "query fails",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectPing()
				mock.ExpectExec("SELECT 1").WillReturnError(errors.New("read only"))
			},
			wantErr: "postgres simple query failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()
			tt.setup(mock)

			err = PostgresHealthCheck(context.Background(), mock, 0)
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}

	assert.Error(t, PostgresHealthCheck(context.Background(), nil, 0))
}
