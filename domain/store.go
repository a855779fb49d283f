package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

type User struct {
	ID        int64
	Name      string
	Email     string
	Role      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Experience struct {
	ID              int64
	Code            string
	Name            string
	DurationMinutes int
	Description     string
	PriceCents      int64
	Active          bool
	CreatedAt       time.Time
}

// PriceLabel formats the price in soles, e.g. "S/ 1,200.00".
func (e Experience) PriceLabel() string {
	whole := e.PriceCents / 100
	cents := e.PriceCents % 100

	digits := fmt.Sprintf("%d", whole)
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("S/ %s.%02d", b.String(), cents)
}

type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "pending"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationCompleted ReservationStatus = "completed"
	ReservationCancelled ReservationStatus = "cancelled"
)

type Reservation struct {
	ID int64
	// UserID is nil once the owning user has been deleted.
	UserID       *int64
	Name         string
	PartySize    int
	ExperienceID int64
	Restrictions string
	ScheduledAt  time.Time
	Status       ReservationStatus
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// PreferenceProfile is the persisted row; Document holds a DietaryProfile
// encoded as JSON.
type PreferenceProfile struct {
	ID        int64
	UserID    int64
	Document  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type DietaryProfile struct {
	Allergies    []string `json:"allergies"`
	Restrictions []string `json:"restrictions"`
	Dislikes     []string `json:"dislikes"`
	Likes        []string `json:"likes"`
}

func (p DietaryProfile) IsEmpty() bool {
	return len(p.Allergies) == 0 && len(p.Restrictions) == 0 && len(p.Dislikes) == 0 && len(p.Likes) == 0
}

// Normalize trims entries, drops blanks and duplicates, and replaces nil
// lists with empty ones so the encoded document always has four arrays.
func (p DietaryProfile) Normalize() DietaryProfile {
	return DietaryProfile{
		Allergies:    normalizeList(p.Allergies),
		Restrictions: normalizeList(p.Restrictions),
		Dislikes:     normalizeList(p.Dislikes),
		Likes:        normalizeList(p.Likes),
	}
}

func (p DietaryProfile) Document() (string, error) {
	b, err := json.Marshal(p.Normalize())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ParseDietaryProfile decodes a stored document. An empty document yields an
// empty profile.
func ParseDietaryProfile(document string) (DietaryProfile, error) {
	var p DietaryProfile
	if strings.TrimSpace(document) == "" {
		return p.Normalize(), nil
	}
	if err := json.Unmarshal([]byte(document), &p); err != nil {
		return DietaryProfile{}, fmt.Errorf("decode dietary profile: %w", err)
	}
	return p.Normalize(), nil
}

func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}

// FindReservation specifies the conditions for listing reservations.
type FindReservation struct {
	UserID *int64
	Status *ReservationStatus
}

// Store is the domain store accessor. Lookups return (nil, nil) when the
// record does not exist. Every write runs in its own transaction.
type Store interface {
	GetUser(ctx context.Context, id int64) (*User, error)
	CreateUser(ctx context.Context, user *User) (*User, error)

	ListExperiences(ctx context.Context, activeOnly bool) ([]Experience, error)
	GetExperience(ctx context.Context, id int64) (*Experience, error)

	GetPreferenceProfile(ctx context.Context, userID int64) (*PreferenceProfile, error)
	// UpsertPreferenceProfile replaces the whole document of the user's
	// profile, creating the row on first save.
	UpsertPreferenceProfile(ctx context.Context, userID int64, document string) (*PreferenceProfile, error)

	ListReservations(ctx context.Context, find FindReservation) ([]Reservation, error)
	CreateReservation(ctx context.Context, reservation *Reservation) (*Reservation, error)

	Close() error
}
