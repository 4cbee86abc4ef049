package model

import (
	"fmt"
	"strings"
)

// Category is a product category. A routine holds at most one product per category.
type Category string

const (
	CategoryCleanser    Category = "cleanser"
	CategoryToner       Category = "toner"
	CategoryMoisturizer Category = "moisturizer"
	CategorySerum       Category = "serum"
	CategorySunscreen   Category = "sunscreen"
	CategoryExfoliant   Category = "exfoliant"
	CategoryMask        Category = "mask"
	CategoryEyeCream    Category = "eye-cream"
	CategoryOil         Category = "oil"
	CategoryOther       Category = "other"
)

// Categories lists every category in declaration order.
var Categories = []Category{
	CategoryCleanser, CategoryToner, CategoryMoisturizer, CategorySerum, CategorySunscreen,
	CategoryExfoliant, CategoryMask, CategoryEyeCream, CategoryOil, CategoryOther,
}

// ApplicationTime is when a product is meant to be applied.
type ApplicationTime string

const (
	TimeDay   ApplicationTime = "day"
	TimeNight ApplicationTime = "night"
	TimeBoth  ApplicationTime = "both"
)

// ApplicationTimes lists every application time.
var ApplicationTimes = []ApplicationTime{TimeDay, TimeNight, TimeBoth}

// CompatibleWith reports whether a product applied at t can fill a slot at slot.
func (t ApplicationTime) CompatibleWith(slot ApplicationTime) bool {
	return t == slot || t == TimeBoth
}

// SkinType is a user's single-valued skin type.
type SkinType string

const (
	SkinOily        SkinType = "oily"
	SkinCombination SkinType = "combination"
	SkinDry         SkinType = "dry"
	SkinNormal      SkinType = "normal"
	SkinSensitive   SkinType = "sensitive"
)

// SkinTypes lists every skin type.
var SkinTypes = []SkinType{SkinOily, SkinCombination, SkinDry, SkinNormal, SkinSensitive}

// Goal is a treatment goal a product addresses or a user pursues.
type Goal string

const (
	GoalDarkSpots  Goal = "dark-spots"
	GoalTexture    Goal = "texture"
	GoalIrritation Goal = "irritation"
	GoalFineLines  Goal = "fine-lines"
	GoalPores      Goal = "pores"
	GoalHydration  Goal = "hydration"
)

// Goals lists every goal.
var Goals = []Goal{GoalDarkSpots, GoalTexture, GoalIrritation, GoalFineLines, GoalPores, GoalHydration}

// RoutineType is the time-of-day a routine is for.
type RoutineType string

const (
	RoutineDay   RoutineType = "day"
	RoutineNight RoutineType = "night"
)

// RoutineTypes lists every routine type.
var RoutineTypes = []RoutineType{RoutineDay, RoutineNight}

// ApplicationTime returns the slot time a routine of this type fills.
func (t RoutineType) ApplicationTime() ApplicationTime {
	if t == RoutineNight {
		return TimeNight
	}
	return TimeDay
}

// Template returns the categories an initial routine of this type tries to fill, in order.
func (t RoutineType) Template() []Category {
	switch t {
	case RoutineDay:
		return []Category{CategoryCleanser, CategorySerum, CategoryMoisturizer, CategorySunscreen}
	case RoutineNight:
		return []Category{CategoryCleanser, CategorySerum, CategoryMoisturizer}
	default:
		return nil
	}
}

func parseEnum[T ~string](kind, raw string, values []T) (T, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.ReplaceAll(v, "_", "-")
	for _, candidate := range values {
		if string(candidate) == v {
			return candidate, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("unknown %s %q: %w", kind, raw, ErrInvalidInput)
}

// ParseCategory parses a wire category name.
func ParseCategory(raw string) (Category, error) {
	return parseEnum("category", raw, Categories)
}

// ParseApplicationTime parses a wire application time.
func ParseApplicationTime(raw string) (ApplicationTime, error) {
	return parseEnum("application time", raw, ApplicationTimes)
}

// ParseSkinType parses a wire skin type.
func ParseSkinType(raw string) (SkinType, error) {
	return parseEnum("skin type", raw, SkinTypes)
}

// ParseGoal parses a wire goal.
func ParseGoal(raw string) (Goal, error) {
	return parseEnum("goal", raw, Goals)
}

// ParseRoutineType parses a wire routine type.
func ParseRoutineType(raw string) (RoutineType, error) {
	return parseEnum("routine type", raw, RoutineTypes)
}

// ParseGoals parses every goal in raw, dropping duplicates while keeping order.
func ParseGoals(raw []string) ([]Goal, error) {
	goals := make([]Goal, 0, len(raw))
	seen := make(map[Goal]struct{}, len(raw))
	for _, r := range raw {
		g, err := ParseGoal(r)
		if err != nil {
			return nil, err
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		goals = append(goals, g)
	}
	return goals, nil
}
