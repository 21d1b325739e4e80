package model

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultExpenseCategories is the built-in expense category set.
var DefaultExpenseCategories = []string{
	"Food & Dining",
	"Transportation",
	"Housing & Rent",
	"Entertainment",
	"Shopping",
	"Healthcare",
	"Education",
	"Utilities",
	"Travel",
	"Personal Care",
	"Savings",
	"Other",
}

// DefaultIncomeSources is the built-in income source set.
var DefaultIncomeSources = []string{
	"Salary",
	"Freelance",
	"Business",
	"Investments",
	"Rental Income",
	"Side Hustle",
	"Gift",
	"Other",
}

// CategorySet is an ordered, fixed set of expense category names.
type CategorySet struct {
	names []string
	index map[string]struct{}
}

// NewCategorySet builds a set from names, dropping duplicates.
func NewCategorySet(names []string) *CategorySet {
	s := &CategorySet{index: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if _, ok := s.index[n]; ok {
			continue
		}
		s.index[n] = struct{}{}
		s.names = append(s.names, n)
	}
	return s
}

// DefaultCategorySet returns the built-in expense categories.
func DefaultCategorySet() *CategorySet {
	return NewCategorySet(DefaultExpenseCategories)
}

// Names returns the categories in configured order.
func (s *CategorySet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Contains reports whether name is a known category.
func (s *CategorySet) Contains(name string) bool {
	_, ok := s.index[name]
	return ok
}

type categoryFile struct {
	Categories []string `yaml:"categories"`
}

// LoadCategories reads a YAML category file of the form
//
//	categories:
//	  - Food & Dining
//	  - Other
func LoadCategories(path string) (*CategorySet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category file %s: %w", path, err)
	}

	var f categoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse category file %s: %w", path, err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("category file %s: no categories defined", path)
	}
	return NewCategorySet(f.Categories), nil
}
