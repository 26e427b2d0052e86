package models

import (
	"fmt"
)

// Category groups challenges by subject area
type Category string

const (
	CategoryGettingStarted Category = "getting-started"
	CategoryWeb            Category = "web"
	CategoryNetwork        Category = "network"
	CategoryCrypto         Category = "crypto"
)

// Valid reports whether the category is one of the known values
func (c Category) Valid() bool {
	switch c {
	case CategoryGettingStarted, CategoryWeb, CategoryNetwork, CategoryCrypto:
		return true
	}
	return false
}

// Difficulty represents the challenge difficulty rating
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether the difficulty is one of the known values
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Challenge is a single graded exercise with a point value and an expected flag
type Challenge struct {
	ID          string             `yaml:"id" json:"id"`
	Title       string             `yaml:"title" json:"title"`
	Description string             `yaml:"description" json:"description"`
	Content     string             `yaml:"content" json:"content"`
	Category    Category           `yaml:"category" json:"category"`
	Difficulty  Difficulty         `yaml:"difficulty" json:"difficulty"`
	Points      int                `yaml:"points" json:"points"`
	Flag        string             `yaml:"flag" json:"-"` // Never serialize
	Target      string             `yaml:"target,omitempty" json:"-"`
	Credentials *ServerCredentials `yaml:"credentials,omitempty" json:"server_credentials,omitempty"`
}

// ServerCredentials holds connection information for a challenge's
// practice target. Opaque to the grading core.
type ServerCredentials struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Username string `yaml:"username,omitempty" json:"username,omitempty"`
	Password string `yaml:"password,omitempty" json:"password,omitempty"`
	URI      string `yaml:"uri,omitempty" json:"uri,omitempty"`
}

// Validate checks the catalog invariants for a challenge definition
func (c *Challenge) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("challenge id is required")
	}
	if c.Title == "" {
		return fmt.Errorf("challenge %s: title is required", c.ID)
	}
	if !c.Category.Valid() {
		return fmt.Errorf("challenge %s: invalid category %q", c.ID, c.Category)
	}
	if !c.Difficulty.Valid() {
		return fmt.Errorf("challenge %s: invalid difficulty %q", c.ID, c.Difficulty)
	}
	if c.Points <= 0 {
		return fmt.Errorf("challenge %s: points must be positive, got %d", c.ID, c.Points)
	}
	if c.Flag == "" {
		return fmt.Errorf("challenge %s: flag is required", c.ID)
	}
	return nil
}
