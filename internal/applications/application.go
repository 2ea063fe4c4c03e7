package applications

import (
	"strconv"
	"strings"
	"time"
)

type Kind string

const (
	KindPlayer    Kind = "player"
	KindCoach     Kind = "coach"
	KindReferee   Kind = "referee"
	KindVolunteer Kind = "volunteer"
)

func (k Kind) Valid() bool {
	switch k {
	case KindPlayer, KindCoach, KindReferee, KindVolunteer:
		return true
	}
	return false
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusDenied   Status = "denied"
)

func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusDenied
}

// AdultAge is the age from which players apply without a guardian.
const AdultAge = 18

type Guardian struct {
	Name         string `bson:"name" json:"name"`
	Email        string `bson:"email" json:"email"`
	Phone        string `bson:"phone,omitempty" json:"phone,omitempty"`
	Relationship string `bson:"relationship,omitempty" json:"relationship,omitempty"`
}

// Application is an intake request from a prospective player, coach,
// referee or volunteer.
type Application struct {
	ID              string     `bson:"_id" json:"id"`
	Type            Kind       `bson:"type" json:"type"`
	FirstName       string     `bson:"firstName" json:"firstName"`
	LastName        string     `bson:"lastName" json:"lastName"`
	Email           string     `bson:"email" json:"email"`
	Phone           string     `bson:"phone,omitempty" json:"phone,omitempty"`
	DateOfBirth     *time.Time `bson:"dateOfBirth,omitempty" json:"dateOfBirth,omitempty"`
	Position        string     `bson:"position,omitempty" json:"position,omitempty"`
	ExperienceYears int        `bson:"experienceYears" json:"experienceYears"`
	Certifications  []string   `bson:"certifications,omitempty" json:"certifications,omitempty"`
	Availability    []string   `bson:"availability,omitempty" json:"availability,omitempty"`
	Message         string     `bson:"message,omitempty" json:"message,omitempty"`
	Guardian        *Guardian  `bson:"guardian,omitempty" json:"guardian,omitempty"`
	Status          Status     `bson:"status" json:"status"`
	ReviewNotes     string     `bson:"reviewNotes,omitempty" json:"reviewNotes,omitempty"`
	ReviewedBy      string     `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	ReviewedAt      *time.Time `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
	CreatedAt       time.Time  `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time  `bson:"updatedAt" json:"updatedAt"`
}

func (a *Application) FullName() string { return a.FirstName + " " + a.LastName }

// AgeAt returns the applicant's age in whole years, or -1 when unknown.
func (a *Application) AgeAt(now time.Time) int {
	if a.DateOfBirth == nil {
		return -1
	}
	dob := a.DateOfBirth.UTC()
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

type Stats struct {
	Total    int64            `json:"total"`
	ByStatus map[Status]int64 `json:"byStatus"`
	ByType   map[Kind]int64   `json:"byType"`
}

func newStats() Stats {
	return Stats{ByStatus: map[Status]int64{}, ByType: map[Kind]int64{}}
}

var CSVHeader = []string{
	"id", "type", "first_name", "last_name", "email", "phone", "date_of_birth", "position",
	"experience_years", "certifications", "availability", "guardian", "guardian_email",
	"status", "reviewed_at", "created_at",
}

func (a *Application) CSVRow() []string {
	dob, reviewed := "", ""
	if a.DateOfBirth != nil {
		dob = a.DateOfBirth.UTC().Format("2006-01-02")
	}
	if a.ReviewedAt != nil {
		reviewed = a.ReviewedAt.UTC().Format(time.RFC3339)
	}
	var guardian, guardianEmail string
	if a.Guardian != nil {
		guardian, guardianEmail = a.Guardian.Name, a.Guardian.Email
	}
	return []string{
		a.ID, string(a.Type), a.FirstName, a.LastName, a.Email, a.Phone, dob, a.Position,
		strconv.Itoa(a.ExperienceYears), strings.Join(a.Certifications, "; "), strings.Join(a.Availability, "; "),
		guardian, guardianEmail, string(a.Status), reviewed, a.CreatedAt.UTC().Format(time.RFC3339),
	}
}
