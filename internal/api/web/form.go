package web

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"

	"github.com/osa030/xflow/internal/domain/workout"
)

// Choices offered by the preference form.
var (
	distanceChoices = intRange(1, 19)
	ageChoices      = intRange(18, 74)
	hourChoices     = intRange(0, 3)
	minuteChoices   = intRange(0, 59)
)

// preferencesForm mirrors the fields posted by the home page.
type preferencesForm struct {
	Genres   []string `validate:"min=1,dive,required"`
	Distance int      `validate:"gte=1,lte=19"`
	Age      int      `validate:"gte=18,lte=74"`
	Hours    int      `validate:"gte=0,lte=3"`
	Minutes  int      `validate:"gte=0,lte=59"`
}

var formValidator = validator.New()

// parsePreferences reads and validates the posted preference form.
func parsePreferences(r *http.Request, maxGenres int) (workout.Request, error) {
	if err := r.ParseForm(); err != nil {
		return workout.Request{}, errors.Wrap(err, "invalid form")
	}

	var (
		f   preferencesForm
		err error
	)
	for _, g := range r.PostForm["genre"] {
		if g = strings.TrimSpace(g); g != "" {
			f.Genres = append(f.Genres, g)
		}
	}
	if f.Distance, err = formInt(r, "number"); err != nil {
		return workout.Request{}, err
	}
	if f.Age, err = formInt(r, "age"); err != nil {
		return workout.Request{}, err
	}
	if f.Hours, err = formInt(r, "pace-hr"); err != nil {
		return workout.Request{}, err
	}
	if f.Minutes, err = formInt(r, "pace-min"); err != nil {
		return workout.Request{}, err
	}

	if err := formValidator.Struct(f); err != nil {
		return workout.Request{}, errors.Wrap(err, "invalid preferences")
	}

	req := workout.Request{
		Age:          f.Age,
		TotalMinutes: workout.HoursMinutes(f.Hours, f.Minutes),
		Genres:       f.Genres,
		Distance:     f.Distance,
	}
	if err := req.Validate(maxGenres); err != nil {
		return workout.Request{}, err
	}
	return req, nil
}

func formInt(r *http.Request, field string) (int, error) {
	raw := strings.TrimSpace(r.PostFormValue(field))
	if raw == "" {
		return 0, errors.Newf("missing field %q", field)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Newf("field %q must be a whole number", field)
	}
	return v, nil
}

func intRange(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}
