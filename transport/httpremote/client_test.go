package httpremote

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlift/syncengine/entity"
	syncErrors "github.com/openlift/syncengine/errors"
)

func TestCreate(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.Method + " " + r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"id": "R42"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, WithAuthToken("tok-1"))
	remoteID, err := client.Create(context.Background(), entity.KindSchema, map[string]any{"name": "PPL"})
	require.NoError(t, err)

	assert.Equal(t, "R42", remoteID)
	assert.Equal(t, "POST /schemas", gotPath)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Equal(t, "PPL", gotBody["name"])
}

func TestUpdateAndDeletePaths(t *testing.T) {
	var paths []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	ctx := context.Background()

	require.NoError(t, client.Update(ctx, entity.KindWorkoutDay, "R7", map[string]any{"name": "Push"}))
	require.NoError(t, client.Delete(ctx, entity.KindWorkoutDay, "R7"))

	assert.Equal(t, []string{"PUT /workoutDays/R7", "DELETE /workoutDays/R7"}, paths)
}

func TestList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/exercises", r.URL.Path)
		assert.Equal(t, "user-9", r.URL.Query().Get("userId"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{"id": "R1", "name": "Squat", "dayId": "RD1", "updatedAt": 1700000000000},
			{"id": "R2", "name": "Bench", "dayId": "RD1", "updatedAt": 1700000000001},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	records, err := client.List(context.Background(), entity.KindExercise, "user-9")
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "R1", records[0].ID)
	assert.Equal(t, int64(1700000000000), records[0].UpdatedAt)
	assert.Equal(t, "Squat", records[0].Fields["name"])
	_, hasID := records[0].Fields["id"]
	assert.False(t, hasID, "id is lifted out of the field map")
}

func TestServerErrorMessagePreserved(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded, retry later"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.Create(context.Background(), entity.KindSchema, map[string]any{"name": "x"})
	require.Error(t, err)

	assert.Contains(t, err.Error(), "rate limit exceeded, retry later")
	assert.True(t, syncErrors.IsRetryable(err), "HTTP failures are classified retryable")
}

func TestMissingIDInCreateResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.Create(context.Background(), entity.KindSchema, map[string]any{"name": "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no id")
	assert.False(t, syncErrors.IsRetryable(err))
}

func TestConnectionFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	client := NewClient(srv.URL)
	err := client.Delete(context.Background(), entity.KindSchema, "R1")
	require.Error(t, err)
	assert.True(t, syncErrors.IsRetryable(err))
}
