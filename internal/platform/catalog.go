package platform

import (
	"context"
)

// Exercise represents an exercise of a muscle group
type Exercise struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Group       string `json:"group" yaml:"group"`
	Series      int    `json:"series" yaml:"series"`
	Repetitions string `json:"repetitions" yaml:"repetitions"`
	Demo        string `json:"demo,omitempty" yaml:"demo,omitempty"`
	Thumb       string `json:"thumb,omitempty" yaml:"thumb,omitempty"`
}

// Groups lists the muscle groups
func (c *Client) Groups(ctx context.Context) ([]string, error) {
	var groups []string
	if err := c.get(ctx, pathGroups, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// ExercisesByGroup lists the exercises of a group
func (c *Client) ExercisesByGroup(ctx context.Context, group string) ([]Exercise, error) {
	var exercises []Exercise
	if err := c.get(ctx, pathExercisesGroup+escape(group), &exercises); err != nil {
		return nil, err
	}
	return exercises, nil
}
