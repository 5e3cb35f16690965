package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"chain-graph/backend/internal/graph"
	apperrors "chain-graph/backend/pkg/errors"
)

// queryInt reads an optional integer query parameter; absent gives 0
func queryInt(c *gin.Context, name string) (int, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperrors.NewValidation(name, "Must be an integer")
	}
	return v, nil
}

// queryFloat reads an optional float query parameter with a default
func queryFloat(c *gin.Context, name string, def float64) (float64, error) {
	raw := c.Query(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, apperrors.NewValidation(name, "Must be a number")
	}
	return v, nil
}

func queryBool(c *gin.Context, name string) (bool, error) {
	raw := c.Query(name)
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.NewValidation(name, "Must be true or false")
	}
	return v, nil
}

// queryVolume reads an optional decimal volume
func queryVolume(c *gin.Context, name string) (graph.Volume, error) {
	v, err := graph.ParseVolume(c.Query(name))
	if err != nil {
		return graph.Volume{}, apperrors.NewValidation(name, "Must be a non-negative integer amount")
	}
	return v, nil
}

// bindJSON decodes the request body, reporting malformed input as a validation error
func bindJSON(c *gin.Context, dest interface{}) error {
	if err := c.ShouldBindJSON(dest); err != nil {
		return apperrors.NewValidation("body", err.Error())
	}
	return nil
}
