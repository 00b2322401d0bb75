package main

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// setupAnalyzeTest creates a Gin engine with a mock OpenAI server and returns
// the router and a function to set the mock response. No DB needed.
func setupAnalyzeTest() (*gin.Engine, *httptest.Server, func(int, interface{})) {
	var mockStatus int
	var mockBody interface{}

	mockOpenAI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(mockStatus)
		json.NewEncoder(w).Encode(mockBody)
	}))

	aiConfig := openai.DefaultConfig("test-key")
	aiConfig.BaseURL = mockOpenAI.URL + "/v1"

	cfg := &Config{}
	cfg.OpenAI.Model = "gpt-4o"
	cfg.OpenAI.BaseURL = aiConfig.BaseURL

	h := Handler{
		ai:  openai.NewClientWithConfig(aiConfig),
		cfg: cfg,
		log: zap.NewNop().Sugar(),
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()
	// Skip auth middleware for tests — set a dummy user_id
	router.POST("/api/analyze-food", func(c *gin.Context) {
		c.Set("user_id", 1)
		c.Next()
	}, h.analyzeFood)

	setMock := func(status int, body interface{}) {
		mockStatus = status
		mockBody = body
	}

	return router, mockOpenAI, setMock
}

// doAnalyzeRequest sends a multipart POST with a small fake image attached.
func doAnalyzeRequest(t *testing.T, router *gin.Engine) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("image", "meal.jpg")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	part.Write([]byte("fake-jpeg-bytes"))
	mw.Close()

	req := httptest.NewRequest("POST", "/api/analyze-food", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// visionChatResponse wraps a content string in the OpenAI chat completions
// response shape (choices[0].message.content).
func visionChatResponse(content string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{
				"message": map[string]interface{}{
					"content": content,
				},
			},
		},
	}
}

func TestAnalyzeFood_Success(t *testing.T) {
	router, mockServer, setMock := setupAnalyzeTest()
	defer mockServer.Close()

	analysis := `{"items":[{"name":"Grilled Chicken","calories":280,"protein_g":35,"carbs_g":0,"fat_g":12,"confidence":0.92},{"name":"Brown Rice","calories":215,"protein_g":5,"carbs_g":45,"fat_g":1.8,"confidence":0.85}],"total_calories":999,"total_protein_g":0,"total_carbs_g":0,"total_fat_g":0}`
	setMock(http.StatusOK, visionChatResponse(analysis))

	w := doAnalyzeRequest(t, router)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp analysisResult
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(resp.Items))
	}
	if resp.Items[0].Name != "Grilled Chicken" {
		t.Errorf("expected first item 'Grilled Chicken', got '%s'", resp.Items[0].Name)
	}
	// Totals come from the items, never the model's own (bogus 999) figure.
	if resp.TotalCalories != 495 {
		t.Errorf("expected total_calories 495, got %v", resp.TotalCalories)
	}
	if resp.TotalProteinG != 40 {
		t.Errorf("expected total_protein_g 40, got %v", resp.TotalProteinG)
	}
}

func TestAnalyzeFood_MarkdownFencedResponse(t *testing.T) {
	router, mockServer, setMock := setupAnalyzeTest()
	defer mockServer.Close()

	fenced := "```json\n{\"items\":[{\"name\":\"Apple\",\"calories\":95,\"protein_g\":0.5,\"carbs_g\":25,\"fat_g\":0.3,\"confidence\":0.99}]}\n```"
	setMock(http.StatusOK, visionChatResponse(fenced))

	w := doAnalyzeRequest(t, router)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp analysisResult
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if len(resp.Items) != 1 || resp.Items[0].Name != "Apple" {
		t.Errorf("fenced response not parsed: %+v", resp.Items)
	}
}

func TestAnalyzeFood_MissingImage(t *testing.T) {
	router, mockServer, _ := setupAnalyzeTest()
	defer mockServer.Close()

	req := httptest.NewRequest("POST", "/api/analyze-food", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestAnalyzeFood_InvalidModelJSON(t *testing.T) {
	router, mockServer, setMock := setupAnalyzeTest()
	defer mockServer.Close()

	setMock(http.StatusOK, visionChatResponse("I can see a plate of pasta with approximately 600 calories."))

	w := doAnalyzeRequest(t, router)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500 for non-JSON model output, got %d", w.Code)
	}
}

func TestAnalyzeFood_UpstreamError(t *testing.T) {
	router, mockServer, setMock := setupAnalyzeTest()
	defer mockServer.Close()

	setMock(http.StatusInternalServerError, map[string]interface{}{
		"error": map[string]interface{}{"message": "model overloaded"},
	})

	w := doAnalyzeRequest(t, router)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
}

/* ─── Sanitization units ─────────────────────────────────────────────── */

func TestSanitizeAnalysis_CoercesLooseFields(t *testing.T) {
	raw := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{
				"name":       "Pancakes",
				"calories":   "350",  // string number
				"protein_g":  nil,    // null
				"carbs_g":    " 58 ", // padded string
				"fat_g":      9.5,
				"confidence": "high", // non-numeric string
			},
			map[string]interface{}{
				// every field missing
				"name": "Syrup",
			},
			"not-an-object", // skipped entirely
		},
	}

	got := sanitizeAnalysis(raw)

	if len(got.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got.Items))
	}
	first := got.Items[0]
	if first.Calories != 350 || first.ProteinG != 0 || first.CarbsG != 58 || first.FatG != 9.5 || first.Confidence != 0 {
		t.Errorf("coercion wrong: %+v", first)
	}
	second := got.Items[1]
	if second.Name != "Syrup" || second.Calories != 0 {
		t.Errorf("missing fields should zero-fill: %+v", second)
	}
	if got.TotalCalories != 350 || got.TotalCarbsG != 58 {
		t.Errorf("totals not recomputed from items: %+v", got)
	}
}

func TestSanitizeAnalysis_EmptyInput(t *testing.T) {
	got := sanitizeAnalysis(map[string]interface{}{})
	if got.Items == nil {
		t.Error("items should be an empty slice, not nil")
	}
	if len(got.Items) != 0 || got.TotalCalories != 0 {
		t.Errorf("expected empty result, got %+v", got)
	}
}

func TestStripMarkdownFences(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"{\"a\":1}", "{\"a\":1}"},
		{"```json\n{\"a\":1}\n```", "{\"a\":1}"},
		{"```\n{\"a\":1}\n```", "{\"a\":1}"},
		{"  \n```json{\"a\":1}```  ", "{\"a\":1}"},
	}
	for _, c := range cases {
		if got := stripMarkdownFences(c.in); got != c.want {
			t.Errorf("stripMarkdownFences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
