package auth

import (
	"context"
	"regexp"
	"strings"

	"github.com/Laisky/errors/v2"

	"github.com/aquareto/aquareto-server/common/apperr"
	"github.com/aquareto/aquareto-server/eventhub"
	"github.com/aquareto/aquareto-server/external"
	"github.com/aquareto/aquareto-server/model"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{3,15}$`)
	leadingDigit    = regexp.MustCompile(`^[0-9]`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

	bannedUsernames = map[string]struct{}{
		"admin": {}, "administrator": {}, "system": {}, "moderator": {}, "root": {},
	}
)

// RegisterRequest carries the fields the registration operation
// validates.
type RegisterRequest struct {
	Username  string
	Email     string
	Password  string
	ClientIP  string
	UserAgent string
}

// Register validates req, enforces uniqueness, and creates the User plus
// its seeded UserStatistics/DailyChallengeStats rows, publishing
// TopicUserRegistered on success.
func Register(ctx context.Context, req RegisterRequest, geo external.GeoLookup) (*model.User, error) {
	if err := validateRegistration(req); err != nil {
		return nil, err
	}

	if model.IsUsernameTaken(req.Username) {
		return nil, apperr.New(apperr.KindConflict, "duplicate_username")
	}
	if model.IsEmailTaken(req.Email) {
		return nil, apperr.New(apperr.KindConflict, "duplicate_email")
	}

	countryCode := ""
	if geo != nil {
		countryCode = geo.CountryCode(ctx, req.ClientIP)
	}

	user, err := model.CreateUser(req.Username, req.Email, req.Password, countryCode)
	if err != nil {
		return nil, errors.Wrap(err, "create user")
	}

	if _, err := model.GetDailyChallengeStats(user.Id); err != nil {
		return nil, errors.Wrap(err, "seed daily challenge stats")
	}

	eventhub.Default.Publish(eventhub.TopicUserRegistered, user)
	return user, nil
}

func validateRegistration(req RegisterRequest) error {
	if !usernamePattern.MatchString(req.Username) {
		return apperr.New(apperr.KindValidation, "validation_error").WithDetails(map[string]string{"field": "username"})
	}
	if leadingDigit.MatchString(req.Username) {
		return apperr.New(apperr.KindValidation, "validation_error").WithDetails(map[string]string{"field": "username"})
	}
	if _, banned := bannedUsernames[strings.ToLower(req.Username)]; banned {
		return apperr.New(apperr.KindValidation, "validation_error").WithDetails(map[string]string{"field": "username"})
	}
	if !emailPattern.MatchString(req.Email) {
		return apperr.New(apperr.KindValidation, "validation_error").WithDetails(map[string]string{"field": "email"})
	}
	if len(req.Password) < 8 {
		return apperr.New(apperr.KindValidation, "validation_error").WithDetails(map[string]string{"field": "password"})
	}
	return nil
}
