package roster

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

func TestSheetsSourceFetchEntries(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"range":"Members!A1:C3","majorDimension":"ROWS","values":[["ID","First Name","Last Name"],["1","Ada","Lovelace"],["2","Alan"]]}`))
	}))
	defer srv.Close()

	ctx := context.Background()
	src, err := NewSheetsSource(ctx, SheetsCredentials{},
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
		option.WithHTTPClient(srv.Client()),
	)
	require.NoError(t, err)

	entries, err := src.FetchEntries(ctx, "sheet-123", "Members!A1:C")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{ID: 1, FirstName: "Ada", LastName: "Lovelace"}}, entries)
	assert.True(t, strings.Contains(gotPath, "sheet-123"), gotPath)
}

func TestSheetsSourceRequiresCredentials(t *testing.T) {
	_, err := NewSheetsSource(context.Background(), SheetsCredentials{})
	assert.Error(t, err)
}

func TestSheetsSourceFetchRequiresID(t *testing.T) {
	src := &SheetsSource{}
	_, err := src.Fetch(context.Background(), " ", "A1:C")
	assert.Error(t, err)
}
