package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storytime/internal/db"
	"storytime/internal/services"
)

type noDistractors struct{}

func (noDistractors) Misspellings(context.Context, string, int) ([]string, error) {
	return nil, services.ErrAIUnavailable
}

type testServer struct {
	*Server
	http *httptest.Server
}

func newTestServer(t *testing.T, story string) *testServer {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)

	gen := services.GeneratorFunc(func(context.Context, string) (string, error) { return story, nil })
	questions := services.NewQuestionService(conn)
	students := services.NewStudentService(conn)
	reviews := services.NewReviewService(conn)
	rng := services.NewRand(9)
	storylines := services.NewStorylineService(conn, questions, students, reviews,
		services.NewValidatedGenerator(gen, 3, nil), noDistractors{}, rng, nil)
	ingestion := services.NewIngestionService(
		services.NewDocumentService(conn, t.TempDir()), services.NewPDFService(), questions, nil)

	srv := NewServer(Deps{
		Storylines: storylines,
		Progress:   services.NewProgressService(conn, reviews, nil),
		Questions:  questions,
		Students:   students,
		Reviews:    reviews,
		Ingestion:  ingestion,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
		conn.Close()
	})
	return &testServer{Server: srv, http: ts}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, ts.http.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (ts *testServer) waitJob(t *testing.T, jobID string) map[string]any {
	t.Helper()
	var job map[string]any
	require.Eventually(t, func() bool {
		_, job = ts.do(t, http.MethodGet, "/api/jobs/"+jobID, nil)
		return job["status"] == JobStatusComplete || job["status"] == JobStatusFailed
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, "")
	status, body := ts.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", body["status"])

	status, _ = ts.do(t, http.MethodPost, "/api/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, status)
}

func TestStorylineFlow(t *testing.T) {
	ts := newTestServer(t, "The answer was eight.\n\nThe world was large.")

	status, created := ts.do(t, http.MethodPost, "/api/storylines", map[string]any{
		"words": []string{"answer", "world"},
	})
	require.Equal(t, http.StatusAccepted, status)
	line := created["storyline"].(map[string]any)
	job := created["job"].(map[string]any)
	id := int64(line["id"].(float64))
	assert.Equal(t, "pending", line["status"])

	done := ts.waitJob(t, job["jobId"].(string))
	require.Equal(t, JobStatusComplete, done["status"], done["error"])

	status, details := ts.do(t, http.MethodGet, fmt.Sprintf("/api/storylines/%d", id), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "generated", details["status"])
	assert.Len(t, details["steps"], 2)

	status, step := ts.do(t, http.MethodGet, fmt.Sprintf("/api/storylines/%d/steps/1", id), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, step["html"], "<play-word>answer</play-word>")
	questions := step["questions"].([]any)
	require.Len(t, questions, 1)
	sqID := int64(questions[0].(map[string]any)["story_question_id"].(float64))
	assert.NotContains(t, questions[0], "correct")

	status, result := ts.do(t, http.MethodPost, fmt.Sprintf("/api/storylines/%d/steps/1/submit", id), map[string]any{
		"answers":  map[string]string{fmt.Sprint(sqID): "Answer"},
		"duration": 12,
		"attempts": 1,
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), result["score"])

	status, progress := ts.do(t, http.MethodGet, fmt.Sprintf("/api/storylines/%d/progress", id), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, progress["progress"], 1)

	status, _ = ts.do(t, http.MethodPost, fmt.Sprintf("/api/storylines/%d/generate", id), nil)
	assert.Equal(t, http.StatusConflict, status)

	status, reset := ts.do(t, http.MethodPost, fmt.Sprintf("/api/storylines/%d/reset", id), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "pending", reset["status"])
	assert.Empty(t, reset["steps"])

	status, regenerated := ts.do(t, http.MethodPost, fmt.Sprintf("/api/storylines/%d/generate", id), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "generated", regenerated["status"])

	status, list := ts.do(t, http.MethodGet, "/api/storylines", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, list["storylines"], 1)
}

func TestStorylineExhaustedIsUnprocessable(t *testing.T) {
	ts := newTestServer(t, "Nothing useful here.")

	status, created := ts.do(t, http.MethodPost, "/api/storylines", map[string]any{"words": []string{"zephyr"}})
	require.Equal(t, http.StatusAccepted, status)
	job := ts.waitJob(t, created["job"].(map[string]any)["jobId"].(string))
	assert.Equal(t, JobStatusFailed, job["status"])
	assert.Equal(t, "could not create a story", job["error"])

	id := int64(created["storyline"].(map[string]any)["id"].(float64))
	status, body := ts.do(t, http.MethodPost, fmt.Sprintf("/api/storylines/%d/generate", id), nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "could not create a story", body["error"])

	status, body = ts.do(t, http.MethodGet, "/api/classroom", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "could not create a story", body["error"])
}

func TestCreateStorylineBodyWithoutLength(t *testing.T) {
	ts := newTestServer(t, "The answer was eight.")

	post := func(body string) *httptest.ResponseRecorder {
		// A reader of unknown size leaves ContentLength at -1, as with a chunked upload.
		req := httptest.NewRequest(http.MethodPost, "/api/storylines", io.NopCloser(strings.NewReader(body)))
		require.Equal(t, int64(-1), req.ContentLength)
		rec := httptest.NewRecorder()
		ts.Handler().ServeHTTP(rec, req)
		return rec
	}

	rec := post("")
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	var created map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&created))
	ts.waitJob(t, created["job"].(map[string]any)["jobId"].(string))

	rec = post("{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNotFoundAndBadIDs(t *testing.T) {
	ts := newTestServer(t, "")

	for path, want := range map[string]int{
		"/api/storylines/42":          http.StatusNotFound,
		"/api/storylines/42/steps/1":  http.StatusNotFound,
		"/api/storylines/42/progress": http.StatusNotFound,
		"/api/storylines/abc":         http.StatusBadRequest,
		"/api/students/9":             http.StatusNotFound,
		"/api/students/9/due":         http.StatusNotFound,
		"/api/questions/3/stats":      http.StatusNotFound,
		"/api/jobs/nope":              http.StatusNotFound,
		"/api/unknown":                http.StatusNotFound,
	} {
		status, body := ts.do(t, http.MethodGet, path, nil)
		assert.Equal(t, want, status, path)
		assert.NotEmpty(t, body["error"], path)
	}
}

func TestStudentsAndDueWords(t *testing.T) {
	ts := newTestServer(t, "")

	status, created := ts.do(t, http.MethodPost, "/api/students", map[string]any{
		"name": "Maeve", "age": 8, "interests": []string{"Zelda"},
	})
	require.Equal(t, http.StatusCreated, status)
	id := int64(created["id"].(float64))

	status, _ = ts.do(t, http.MethodPost, "/api/students", map[string]any{"name": " "})
	assert.Equal(t, http.StatusBadRequest, status)

	status, got := ts.do(t, http.MethodGet, fmt.Sprintf("/api/students/%d", id), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Maeve", got["name"])

	status, list := ts.do(t, http.MethodGet, "/api/students", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, list["students"], 1)

	status, due := ts.do(t, http.MethodGet, fmt.Sprintf("/api/students/%d/due?limit=3", id), nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{}, due["words"])
}

func TestImportWordListAndListQuestions(t *testing.T) {
	ts := newTestServer(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("classroom", "2B"))
	part, err := mw.CreateFormFile("file", "week1.txt")
	require.NoError(t, err)
	_, err = part.Write([]byte("eight\nocean\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.http.URL+"/api/wordlists", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var job map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&job))

	done := ts.waitJob(t, job["jobId"].(string))
	require.Equal(t, JobStatusComplete, done["status"], done["error"])
	assert.Equal(t, float64(2), done["result"].(map[string]any)["created"])

	status, body := ts.do(t, http.MethodGet, "/api/questions?classroom=2B", nil)
	require.Equal(t, http.StatusOK, status)
	questions := body["questions"].([]any)
	require.Len(t, questions, 2)
	assert.True(t, strings.HasPrefix(questions[0].(map[string]any)["question"].(string), "spell: "))

	status, body = ts.do(t, http.MethodGet, "/api/questions?classroom=9Z", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []any{}, body["questions"])
}

func TestImportWordListRequiresClassroom(t *testing.T) {
	ts := newTestServer(t, "")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "week1.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("eight"))
	require.NoError(t, mw.Close())

	resp, err := http.Post(ts.http.URL+"/api/wordlists", mw.FormDataContentType(), &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
