package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studynet-go/internal/errs"
	"studynet-go/internal/model"
	"studynet-go/pkg/llm"
)

// stubRAGService 返回预设响应或错误。
type stubRAGService struct {
	resp model.QueryResponse
	err  error
}

func (s *stubRAGService) Query(ctx context.Context, req model.QueryRequest) (model.QueryResponse, error) {
	if s.err != nil {
		return model.QueryResponse{}, s.err
	}
	return s.resp, nil
}

func (s *stubRAGService) StreamQuery(ctx context.Context, req model.QueryRequest, writer llm.ChunkWriter) error {
	return s.err
}

func newQueryRouter(svc *stubRAGService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/query", NewQueryHandler(svc).Query)
	return r
}

func postQuery(r *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/query", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestQuerySuccess(t *testing.T) {
	svc := &stubRAGService{resp: model.QueryResponse{
		Answer:          "UNSW offers a Master of IT.",
		ConfidenceScore: 0.93,
		SessionID:       "s1",
	}}
	w := postQuery(newQueryRouter(svc), `{"query": "IT at UNSW?"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp model.QueryResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "UNSW offers a Master of IT.", resp.Answer)
	assert.Equal(t, "s1", resp.SessionID)
}

func TestQueryMissingBodyRejected(t *testing.T) {
	w := postQuery(newQueryRouter(&stubRAGService{}), `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestQueryErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
		kind string
	}{
		{fmt.Errorf("empty: %w", errs.ErrInvalidQuery), http.StatusBadRequest, "invalid_query"},
		{fmt.Errorf("es down: %w", errs.ErrStoreUnavailable), http.StatusServiceUnavailable, "store_unavailable"},
		{fmt.Errorf("slow: %w", errs.ErrTimeout), http.StatusGatewayTimeout, "timeout"},
		{fmt.Errorf("llm: %w", errs.ErrGeneration), http.StatusInternalServerError, "generation_error"},
	}

	for _, tc := range cases {
		w := postQuery(newQueryRouter(&stubRAGService{err: tc.err}), `{"query": "anything"}`)
		assert.Equal(t, tc.code, w.Code)

		var resp model.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, tc.kind, resp.Code)
	}
}
