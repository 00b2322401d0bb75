package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// getProfile returns the stored profile together with freshly computed
// targets. GET /api/profile. Targets are always derived on read — they are
// never stored, so they can't drift from the profile.
func (h *Handler) getProfile(c *gin.Context) {
	userID := c.GetInt("user_id")

	profile, err := h.repo.Profile(c.Request.Context(), userID)
	if err != nil {
		apiError(c, http.StatusNotFound, "profile not found")
		return
	}

	c.JSON(http.StatusOK, profileResponse{
		Profile: profile,
		Targets: computeTargets(profile),
	})
}

// updateProfile writes the provided profile fields and returns the profile
// with recomputed targets. PUT /api/profile. Pointer fields distinguish
// "not provided" from empty — only non-nil fields are written.
//
// Age, height and weight are accepted as the raw form text. Unparseable
// values are stored as-is; the targets engine degrades them to fallback
// metrics instead of rejecting the edit, so a half-filled onboarding form
// still produces a complete target set.
func (h *Handler) updateProfile(c *gin.Context) {
	userID := c.GetInt("user_id")

	var body updateProfileRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		apiError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	if body.Gender != nil {
		switch *body.Gender {
		case genderMale, genderFemale, genderOther:
		default:
			apiError(c, http.StatusBadRequest, "gender must be one of: male, female, other")
			return
		}
	}
	// Activity level is validated against the multiplier table so an
	// unknown value can't silently flatten every future TDEE to sedentary.
	if body.ActivityLevel != nil {
		if _, ok := activityMultipliers[*body.ActivityLevel]; !ok {
			apiError(c, http.StatusBadRequest,
				"activity_level must be one of: Sedentary, Lightly Active, Moderately Active, Very Active, Extremely Active")
			return
		}
	}

	profile, err := h.repo.UpdateProfile(c.Request.Context(), userID, body)
	if err != nil {
		h.log.Errorw("profile update failed", "user_id", userID, "error", err)
		apiError(c, http.StatusInternalServerError, "failed to update profile")
		return
	}

	c.JSON(http.StatusOK, profileResponse{
		Profile: profile,
		Targets: computeTargets(profile),
	})
}
