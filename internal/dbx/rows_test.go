package dbx

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanRows(t *testing.T) {
	db, mock := setupDB(t)

	mock.ExpectQuery(`SELECT`).WillReturnRows(
		sqlmock.NewRows([]string{"id", "title", "price"}).
			AddRow(int64(1), []byte("Dune"), 9.5).
			AddRow(int64(2), "Emma", nil),
	)

	rows, err := db.QueryContext(context.Background(), `SELECT * FROM "GetProducts"()`)
	require.NoError(t, err)

	got, err := ScanRows(rows)
	require.NoError(t, err)

	want := []Row{
		{"id": int64(1), "title": "Dune", "price": 9.5},
		{"id": int64(2), "title": "Emma", "price": nil},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("rows mismatch (-want +got):\n%s", diff)
	}
}

func TestScanRows_Empty(t *testing.T) {
	db, mock := setupDB(t)
	mock.ExpectQuery(`SELECT`).WillReturnRows(sqlmock.NewRows([]string{"id"}))

	rows, err := db.QueryContext(context.Background(), `SELECT 1`)
	require.NoError(t, err)

	got, err := ScanRows(rows)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestScanRows_RowError(t *testing.T) {
	db, mock := setupDB(t)
	mock.ExpectQuery(`SELECT`).WillReturnRows(
		sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).RowError(0, errors.New("broken")),
	)

	rows, err := db.QueryContext(context.Background(), `SELECT 1`)
	require.NoError(t, err)

	_, err = ScanRows(rows)
	require.Error(t, err)
}

func TestRow_Accessors(t *testing.T) {
	r := Row{"n": int64(3), "i": 4, "f": 2.0, "s": "x", "nil": nil}

	n, ok := r.Int64("n")
	assert.True(t, ok)
	assert.Equal(t, int64(3), n)

	n, _ = r.Int64("i")
	assert.Equal(t, int64(4), n)

	n, _ = r.Int64("f")
	assert.Equal(t, int64(2), n)

	_, ok = r.Int64("s")
	assert.False(t, ok)

	s, ok := r.String("s")
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	_, ok = r.String("nil")
	assert.False(t, ok)
}

func TestRow_Int64_NumericForms(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		want   int64
		wantOK bool
	}{
		{"numeric string", "15", 15, true},
		{"numeric string with scale", "10.00", 10, true},
		{"fractional string", "12.5", 0, false},
		{"fractional float", 12.5, 0, false},
		{"integral float", 7.0, 7, true},
		{"bool", true, 0, false},
		{"missing", nil, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Row{"v": tt.value}.Int64("v")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRow_Flag(t *testing.T) {
	tests := []struct {
		name   string
		row    Row
		want   bool
		wantOK bool
	}{
		{"bool true", Row{"v": true}, true, true},
		{"bool false", Row{"v": false}, false, true},
		{"count", Row{"v": int64(2)}, true, true},
		{"zero count", Row{"v": int64(0)}, false, true},
		{"numeric string", Row{"v": "1"}, true, true},
		{"float count", Row{"v": float64(1)}, true, true},
		{"other column only", Row{"other": true}, false, false},
		{"text", Row{"v": "yes"}, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.row.Flag("v")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
