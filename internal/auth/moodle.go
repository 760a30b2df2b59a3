package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"gorm.io/gorm"

	"equeue/internal/models"
)

// MoodleValidator принимает токены еКурсов (Moodle), сохранённые при входе
// пользователя. Если задан siteInfoURL, токен дополнительно проверяется на
// стороне Moodle.
type MoodleValidator struct {
	db          *gorm.DB
	siteInfoURL string
	client      *http.Client
	logger      *slog.Logger
}

func NewMoodleValidator(db *gorm.DB, siteInfoURL string, client *http.Client, logger *slog.Logger) *MoodleValidator {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &MoodleValidator{db: db, siteInfoURL: siteInfoURL, client: client, logger: logger}
}

// siteInfo нужная нам часть ответа core_webservice_get_site_info.
type siteInfo struct {
	UserID    int    `json:"userid"`
	Exception string `json:"exception"`
	ErrorCode string `json:"errorcode"`
	Message   string `json:"message"`
}

func (v *MoodleValidator) Validate(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrTokenMissing
	}

	var user models.User
	err := v.db.WithContext(ctx).Where("access_token = ?", token).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Identity{}, fmt.Errorf("%w: unknown token", ErrTokenInvalid)
	}
	if err != nil {
		return Identity{}, fmt.Errorf("auth: user lookup: %w", err)
	}

	if v.siteInfoURL != "" {
		if err := v.checkAlive(ctx, token, user.EcoursesID); err != nil {
			return Identity{}, err
		}
	}

	now := time.Now().UTC()
	if err := v.db.WithContext(ctx).Model(&user).Update("last_seen_at", now).Error; err != nil {
		v.logger.Warn("last_seen_at update failed", "user_id", user.ID, "error", err)
	}

	return Identity{
		UserID:     user.ID,
		FirstName:  user.FirstName,
		SecondName: user.SecondName,
		IsAdmin:    user.IsAdmin,
	}, nil
}

func (v *MoodleValidator) checkAlive(ctx context.Context, token string, ecoursesID int) error {
	u, err := url.Parse(v.siteInfoURL)
	if err != nil {
		return fmt.Errorf("auth: site info url: %w", err)
	}
	q := u.Query()
	q.Set("wstoken", token)
	q.Set("wsfunction", "core_webservice_get_site_info")
	q.Set("moodlewsrestformat", "json")
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("auth: site info request: %w", err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("auth: site info request: %w", err)
	}
	defer resp.Body.Close()

	var info siteInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return fmt.Errorf("auth: site info decode: %w", err)
	}
	// На мёртвый токен Moodle отвечает 200 с телом-исключением.
	if info.Exception != "" || info.ErrorCode != "" {
		return fmt.Errorf("%w: moodle: %s", ErrTokenInvalid, info.Message)
	}
	if ecoursesID != 0 && info.UserID != ecoursesID {
		return fmt.Errorf("%w: token belongs to another user", ErrTokenInvalid)
	}
	return nil
}
