package platform

import (
	"context"
	"net/http"
)

// HistoryEntry represents one completed exercise
type HistoryEntry struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Group string `json:"group" yaml:"group"`
	Hour  string `json:"hour" yaml:"hour"`
	Date  string `json:"created_at,omitempty" yaml:"date,omitempty"`
}

// HistoryDay groups history entries by day
type HistoryDay struct {
	Title string         `json:"title" yaml:"title"`
	Data  []HistoryEntry `json:"data" yaml:"entries"`
}

// RegisterHistoryRequest marks an exercise as done
type RegisterHistoryRequest struct {
	ExerciseID string `json:"exercise_id"`
}

// History lists the signed-in user's history grouped by day
func (c *Client) History(ctx context.Context) ([]HistoryDay, error) {
	var days []HistoryDay
	if err := c.get(ctx, pathHistory, &days); err != nil {
		return nil, err
	}
	return days, nil
}

// RegisterHistory records an exercise as done
func (c *Client) RegisterHistory(ctx context.Context, exerciseID string) error {
	return c.doJSON(ctx, http.MethodPost, pathHistory, RegisterHistoryRequest{
		ExerciseID: exerciseID,
	}, nil, false)
}
