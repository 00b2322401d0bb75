package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sashabaranov/go-openai"
)

/* ─── Prompt ─────────────────────────────────────────────────────────── */

const analysisPrompt = `Analyze this image and identify the food items present.
For each item, estimate the calories and macros (protein, carbs, fat) for the serving size shown.
Return the result as a JSON object with the following structure:
{
  "items": [
    {
      "name": "Food Name",
      "calories": 100,
      "protein_g": 10,
      "carbs_g": 20,
      "fat_g": 5,
      "confidence": 0.95
    }
  ],
  "total_calories": 0,
  "total_protein_g": 0,
  "total_carbs_g": 0,
  "total_fat_g": 0
}
Ensure the output is strictly valid JSON with no markdown formatting.`

// 10MB upload cap, same ballpark as the mobile client's compressed photos.
const maxImageBytes = 10 << 20

/* ─── Response types ─────────────────────────────────────────────────── */

// analysisItem is one detected food with sanitized numeric fields.
type analysisItem struct {
	Name       string  `json:"name"`
	Calories   float64 `json:"calories"`
	ProteinG   float64 `json:"protein_g"`
	CarbsG     float64 `json:"carbs_g"`
	FatG       float64 `json:"fat_g"`
	Confidence float64 `json:"confidence"`
}

// analysisResult is the sanitized shape returned to the client. Totals are
// recomputed from the items — the model's own totals are unreliable.
type analysisResult struct {
	Items         []analysisItem `json:"items"`
	TotalCalories float64        `json:"total_calories"`
	TotalProteinG float64        `json:"total_protein_g"`
	TotalCarbsG   float64        `json:"total_carbs_g"`
	TotalFatG     float64        `json:"total_fat_g"`
}

/* ─── Sanitization ───────────────────────────────────────────────────── */

// asNumber coerces a decoded JSON value to a number with a zero fallback.
// The model sometimes emits strings ("120 kcal"), nulls, or omits fields
// entirely; none of that may break logging downstream.
func asNumber(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

// sanitizeAnalysis converts the model's loosely-typed JSON into a clean
// analysisResult: every numeric field coerced with a zero fallback, totals
// recomputed from the item list.
func sanitizeAnalysis(raw map[string]interface{}) analysisResult {
	result := analysisResult{Items: []analysisItem{}}

	rawItems, _ := raw["items"].([]interface{})
	for _, ri := range rawItems {
		m, ok := ri.(map[string]interface{})
		if !ok {
			continue
		}
		item := analysisItem{
			Name:       asString(m["name"]),
			Calories:   asNumber(m["calories"]),
			ProteinG:   asNumber(m["protein_g"]),
			CarbsG:     asNumber(m["carbs_g"]),
			FatG:       asNumber(m["fat_g"]),
			Confidence: asNumber(m["confidence"]),
		}
		result.Items = append(result.Items, item)
		result.TotalCalories += item.Calories
		result.TotalProteinG += item.ProteinG
		result.TotalCarbsG += item.CarbsG
		result.TotalFatG += item.FatG
	}
	return result
}

// stripMarkdownFences removes ```json fences the model wraps around its
// output despite being told not to.
func stripMarkdownFences(s string) string {
	s = strings.ReplaceAll(s, "```json", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

/* ─── Handler ────────────────────────────────────────────────────────── */

// analyzeFood handles POST /api/analyze-food: a multipart "image" upload is
// sent to the vision model, and the parsed, sanitized nutrition estimate is
// returned. The endpoint is a proxy — nothing is logged to the ledger until
// the client confirms the meal via POST /api/log/meals.
func (h *Handler) analyzeFood(c *gin.Context) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		apiError(c, http.StatusBadRequest, "no image file provided")
		return
	}
	if fileHeader.Size > maxImageBytes {
		apiError(c, http.StatusBadRequest, "image too large")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		apiError(c, http.StatusBadRequest, "could not read image")
		return
	}
	defer file.Close()

	imageBytes, err := io.ReadAll(file)
	if err != nil {
		apiError(c, http.StatusBadRequest, "could not read image")
		return
	}

	mimeType := fileHeader.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "image/jpeg"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(imageBytes))

	resp, err := h.ai.CreateChatCompletion(c.Request.Context(), openai.ChatCompletionRequest{
		Model: h.cfg.OpenAI.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role: openai.ChatMessageRoleUser,
				MultiContent: []openai.ChatMessagePart{
					{Type: openai.ChatMessagePartTypeText, Text: analysisPrompt},
					{
						Type:     openai.ChatMessagePartTypeImageURL,
						ImageURL: &openai.ChatMessageImageURL{URL: dataURL},
					},
				},
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		MaxTokens:   1500,
		Temperature: 0,
	})
	if err != nil {
		h.log.Errorw("vision model request failed", "error", err)
		apiError(c, http.StatusInternalServerError, "analysis request failed")
		return
	}
	if len(resp.Choices) == 0 {
		h.log.Errorw("vision model returned no choices")
		apiError(c, http.StatusInternalServerError, "analysis request failed")
		return
	}

	content := stripMarkdownFences(resp.Choices[0].Message.Content)

	var raw map[string]interface{}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		h.log.Errorw("vision model returned invalid JSON", "content", content, "error", err)
		apiError(c, http.StatusInternalServerError, "analysis request failed")
		return
	}

	c.JSON(http.StatusOK, sanitizeAnalysis(raw))
}
