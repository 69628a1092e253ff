package services

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/nimasrn/sms-verify/internal/model"
	"github.com/nimasrn/sms-verify/internal/repository"
	"github.com/nimasrn/sms-verify/pkg/logger"
	"github.com/nimasrn/sms-verify/pkg/redis"
	"github.com/nimasrn/sms-verify/pkg/validate"
)

const settingsCachePrefix = "settings:"

// missingMarker is cached for keys with no row so lookups stay off the database.
const missingMarker = "\x00"

// SettingsService reads settings through a short-lived Redis cache.
type SettingsService struct {
	settings SettingStore
	cache    redis.RedisAdapter
	ttl      time.Duration
}

func NewSettingsService(settings SettingStore, cache redis.RedisAdapter, ttl time.Duration) *SettingsService {
	return &SettingsService{
		settings: settings,
		cache:    cache,
		ttl:      ttl,
	}
}

// Value returns the raw value of key and whether a row exists.
func (s *SettingsService) Value(ctx context.Context, key string) (string, bool, error) {
	if s.cache != nil && s.ttl > 0 {
		raw, err := s.cache.Get(ctx, settingsCachePrefix+key)
		switch {
		case err == nil:
			if string(raw) == missingMarker {
				return "", false, nil
			}
			return string(raw), true, nil
		case !errors.Is(err, redis.NilError):
			logger.Warn("settings cache read failed", "key", key, "error", err)
		}
	}

	setting, err := s.settings.Get(ctx, key)
	if err != nil && !errors.Is(err, repository.ErrSettingNotFound) {
		return "", false, err
	}

	value, found := missingMarker, false
	if setting != nil {
		value, found = setting.Value, true
	}
	if s.cache != nil && s.ttl > 0 {
		if err := s.cache.Set(ctx, settingsCachePrefix+key, []byte(value), s.ttl); err != nil {
			logger.Warn("settings cache write failed", "key", key, "error", err)
		}
	}
	if !found {
		return "", false, nil
	}
	return value, true, nil
}

// Bool reads a boolean setting. Missing or unparseable values are false.
func (s *SettingsService) Bool(ctx context.Context, key string) (bool, error) {
	value, found, err := s.Value(ctx, key)
	if err != nil || !found {
		return false, err
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, nil
	}
	return b, nil
}

func (s *SettingsService) List(ctx context.Context) ([]*model.Setting, error) {
	return s.settings.List(ctx)
}

func (s *SettingsService) Update(ctx context.Context, settings []model.Setting) error {
	if len(settings) == 0 {
		return ErrInvalidInput
	}
	for i := range settings {
		if err := validate.Struct(settings[i]); err != nil {
			return err
		}
		if err := checkSettingValue(settings[i]); err != nil {
			return err
		}
	}
	if err := s.settings.Upsert(ctx, settings); err != nil {
		return err
	}
	if s.cache != nil {
		for _, st := range settings {
			if err := s.cache.Del(ctx, settingsCachePrefix+st.Key); err != nil {
				logger.Warn("settings cache invalidation failed", "key", st.Key, "error", err)
			}
		}
	}
	return nil
}

func checkSettingValue(st model.Setting) error {
	switch st.Type {
	case model.SettingTypeBoolean:
		if _, err := strconv.ParseBool(st.Value); err != nil {
			return errors.Join(ErrInvalidInput, errors.New(st.Key+" must be a boolean"))
		}
	case model.SettingTypeInteger:
		if _, err := strconv.ParseInt(st.Value, 10, 64); err != nil {
			return errors.Join(ErrInvalidInput, errors.New(st.Key+" must be an integer"))
		}
	}
	return nil
}
