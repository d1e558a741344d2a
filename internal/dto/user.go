package dto

// SetPreferenceRequest stores one per-user display flag.
type SetPreferenceRequest struct {
	Name  string `json:"name" binding:"required"`
	Value string `json:"value" binding:"required"`
}
