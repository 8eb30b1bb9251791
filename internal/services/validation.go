package services

import (
	"fmt"
	"net/mail"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/desertthunder/vidx/internal/api"
	"github.com/desertthunder/vidx/internal/models"
	"github.com/desertthunder/vidx/internal/shared"
)

const (
	PlaylistTitleMin     = 3
	PlaylistTitleMax     = 100
	PlaylistDescMax      = 500
	VideoTitleMax        = 100
	VideoDescMax         = 5000
	PasswordMin          = 8
	UsernameMin          = 3
	UsernameMax          = 30
	DefaultMaxUploadSize = 2 << 30
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// videoExtensions maps accepted file extensions to their MIME type.
var videoExtensions = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/mp4",
	".webm": "video/webm",
	".mov":  "video/quicktime",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
}

// fieldErrors collects per-field messages; err returns nil when empty.
type fieldErrors map[string]string

func (f fieldErrors) add(field, format string, args ...any) {
	if _, ok := f[field]; !ok {
		f[field] = fmt.Sprintf(format, args...)
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return api.ValidationError(f)
}

func length(s string) int {
	return utf8.RuneCountInString(strings.TrimSpace(s))
}

func checkPlaylistTitle(f fieldErrors, title string) {
	if n := length(title); n < PlaylistTitleMin || n > PlaylistTitleMax {
		f.add("title", "must be between %d and %d characters", PlaylistTitleMin, PlaylistTitleMax)
	}
}

func checkPlaylistDescription(f fieldErrors, desc string) {
	if length(desc) > PlaylistDescMax {
		f.add("description", "must be at most %d characters", PlaylistDescMax)
	}
}

// ValidatePlaylistInput checks a create form.
func ValidatePlaylistInput(in models.PlaylistInput) error {
	f := fieldErrors{}
	checkPlaylistTitle(f, in.Title)
	checkPlaylistDescription(f, in.Description)
	return f.err()
}

// ValidatePlaylistUpdate checks only the fields present in u.
func ValidatePlaylistUpdate(u models.PlaylistUpdate) error {
	f := fieldErrors{}
	if u.Title != nil {
		checkPlaylistTitle(f, *u.Title)
	}
	if u.Description != nil {
		checkPlaylistDescription(f, *u.Description)
	}
	if u.Title == nil && u.Description == nil && u.IsPrivate == nil {
		f.add("playlist", "nothing to update")
	}
	return f.err()
}

// ValidatePositions checks that a reorder request is a dense 0..N-1 sequence of non-empty video ids.
func ValidatePositions(positions []models.PositionUpdate) error {
	f := fieldErrors{}
	if len(positions) == 0 {
		f.add("videos", "reorder requires at least one video")
		return f.err()
	}
	seen := make([]bool, len(positions))
	for _, p := range positions {
		if p.VideoID == "" {
			f.add("videos", "every entry needs a video id")
			continue
		}
		if p.Position < 0 || p.Position >= len(positions) || seen[p.Position] {
			f.add("positions", "positions must be a dense 0..%d sequence", len(positions)-1)
			continue
		}
		seen[p.Position] = true
	}
	return f.err()
}

func checkVideoTitle(f fieldErrors, title string) {
	if n := length(title); n < 1 || n > VideoTitleMax {
		f.add("title", "must be between 1 and %d characters", VideoTitleMax)
	}
}

func checkVideoDescription(f fieldErrors, desc string) {
	if length(desc) > VideoDescMax {
		f.add("description", "must be at most %d characters", VideoDescMax)
	}
}

func checkVisibility(f fieldErrors, v models.Visibility) {
	switch v {
	case "", models.VisibilityPublic, models.VisibilityUnlisted, models.VisibilityPrivate:
	default:
		f.add("visibility", "must be public, unlisted or private")
	}
}

// ValidateVideoMetadata checks upload metadata.
func ValidateVideoMetadata(m models.VideoMetadata) error {
	f := fieldErrors{}
	checkVideoTitle(f, m.Title)
	checkVideoDescription(f, m.Description)
	checkVisibility(f, m.Visibility)
	return f.err()
}

// ValidateVideoUpdate checks only the fields present in u.
func ValidateVideoUpdate(u models.VideoUpdate) error {
	f := fieldErrors{}
	if u.Title != nil {
		checkVideoTitle(f, *u.Title)
	}
	if u.Description != nil {
		checkVideoDescription(f, *u.Description)
	}
	if u.Visibility != nil {
		checkVisibility(f, *u.Visibility)
	}
	return f.err()
}

// UploadRules are the client-side file checks applied before an upload starts.
type UploadRules struct {
	MaxSize      int64
	AllowedTypes []string
}

// UploadRulesFromConfig maps [shared.UploadConfig] onto [UploadRules].
func UploadRulesFromConfig(cfg shared.UploadConfig) UploadRules {
	return UploadRules{MaxSize: cfg.MaxSize(), AllowedTypes: cfg.AllowedTypes}
}

// ContentTypeFor returns the video MIME type for name's extension, or "" when unknown.
func ContentTypeFor(name string) string {
	return videoExtensions[strings.ToLower(filepath.Ext(name))]
}

// ValidateVideoFile checks name, size and type against rules.
func ValidateVideoFile(name string, size int64, contentType string, rules UploadRules) error {
	f := fieldErrors{}
	maxSize := rules.MaxSize
	if maxSize <= 0 {
		maxSize = DefaultMaxUploadSize
	}

	switch {
	case size <= 0:
		f.add("file", "file is empty")
	case size > maxSize:
		f.add("file", "file exceeds the %d MB limit", maxSize>>20)
	}

	if contentType == "" {
		contentType = ContentTypeFor(name)
	}
	allowed := rules.AllowedTypes
	if len(allowed) == 0 {
		for _, t := range videoExtensions {
			allowed = append(allowed, t)
		}
	}
	if contentType == "" || !slices.Contains(allowed, contentType) {
		f.add("type", "unsupported video type %q", filepath.Ext(name))
	}
	return f.err()
}

// PasswordProblems lists the complexity rules password breaks.
func PasswordProblems(password string) []string {
	var (
		upper, lower, digit, special bool
		problems                     []string
	)
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	if utf8.RuneCountInString(password) < PasswordMin {
		problems = append(problems, fmt.Sprintf("at least %d characters", PasswordMin))
	}
	if !upper {
		problems = append(problems, "an uppercase letter")
	}
	if !lower {
		problems = append(problems, "a lowercase letter")
	}
	if !digit {
		problems = append(problems, "a digit")
	}
	if !special {
		problems = append(problems, "a special character")
	}
	return problems
}

func checkPassword(f fieldErrors, field, password string) {
	if problems := PasswordProblems(password); len(problems) > 0 {
		f.add(field, "must contain %s", strings.Join(problems, ", "))
	}
}

func checkEmail(f fieldErrors, email string) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) {
		f.add("email", "must be a valid email address")
	}
}

// ValidateRegistration checks the sign-up form.
func ValidateRegistration(r models.Registration) error {
	f := fieldErrors{}
	if n := utf8.RuneCountInString(r.Username); n < UsernameMin || n > UsernameMax || !usernamePattern.MatchString(r.Username) {
		f.add("username", "must be %d-%d letters, digits or underscores", UsernameMin, UsernameMax)
	}
	checkEmail(f, r.Email)
	checkPassword(f, "password", r.Password)
	return f.err()
}

func ValidateCredentials(c models.Credentials) error {
	f := fieldErrors{}
	if strings.TrimSpace(c.Login) == "" {
		f.add("login", "is required")
	}
	if c.Password == "" {
		f.add("password", "is required")
	}
	return f.err()
}

func ValidateEmail(email string) error {
	f := fieldErrors{}
	checkEmail(f, email)
	return f.err()
}

func ValidatePasswordReset(r models.PasswordReset) error {
	f := fieldErrors{}
	if strings.TrimSpace(r.Token) == "" {
		f.add("token", "is required")
	}
	checkPassword(f, "password", r.Password)
	return f.err()
}

func ValidatePasswordChange(c models.PasswordChange) error {
	f := fieldErrors{}
	if c.CurrentPassword == "" {
		f.add("currentPassword", "is required")
	}
	checkPassword(f, "newPassword", c.NewPassword)
	if c.CurrentPassword != "" && c.CurrentPassword == c.NewPassword {
		f.add("newPassword", "must differ from the current password")
	}
	return f.err()
}

func requireID(field, id string) error {
	if strings.TrimSpace(id) == "" {
		return api.ValidationError(map[string]string{field: "is required"})
	}
	return nil
}
