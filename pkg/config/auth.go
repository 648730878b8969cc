package config

import "time"

const minSecretLength = 32

// AuthConfig groups token, password and session settings.
type AuthConfig struct {
	JWT       JWTConfig
	Password  PasswordConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
}

// JWTConfig holds the access/refresh token settings. Every field is required.
type JWTConfig struct {
	SecretKey       string
	Issuer          string
	Audience        string
	AccessTTLMins   int
	RefreshTTLDays  int
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type PasswordConfig struct {
	BcryptCost int
	MinLength  int
}

// SessionConfig selects the refresh store and the response to refresh-token reuse.
type SessionConfig struct {
	// Store is one of "postgres", "redis", "memory"
	Store string
	// ReuseResponse is "reject" or "revoke_chain"
	ReuseResponse    string
	ReuseGrace       time.Duration
	SerializeRefresh bool
}

type RateLimitConfig struct {
	LoginPerMinute int
	LoginBurst     int
}

func loadAuthConfig() AuthConfig {
	accessMins := getEnvRequiredInt("AUTH_ACCESS_TOKEN_TTL_MINUTES")
	refreshDays := getEnvRequiredInt("AUTH_REFRESH_TOKEN_TTL_DAYS")

	return AuthConfig{
		JWT: JWTConfig{
			SecretKey:       getEnv("AUTH_JWT_SECRET", ""),
			Issuer:          getEnv("AUTH_JWT_ISSUER", ""),
			Audience:        getEnv("AUTH_JWT_AUDIENCE", ""),
			AccessTTLMins:   accessMins,
			RefreshTTLDays:  refreshDays,
			AccessTokenTTL:  time.Duration(accessMins) * time.Minute,
			RefreshTokenTTL: time.Duration(refreshDays) * 24 * time.Hour,
		},
		Password: PasswordConfig{
			BcryptCost: getEnvInt("AUTH_BCRYPT_COST", 12),
			MinLength:  getEnvInt("AUTH_PASSWORD_MIN_LENGTH", 8),
		},
		Session: SessionConfig{
			Store:            getEnv("AUTH_REFRESH_STORE", "postgres"),
			ReuseResponse:    getEnv("AUTH_REFRESH_REUSE_RESPONSE", "reject"),
			ReuseGrace:       getEnvDuration("AUTH_REFRESH_REUSE_GRACE", 30*time.Second),
			SerializeRefresh: getEnvBool("AUTH_SERIALIZE_REFRESH", false),
		},
		RateLimit: RateLimitConfig{
			LoginPerMinute: getEnvInt("AUTH_LOGIN_RATE_PER_MINUTE", 30),
			LoginBurst:     getEnvInt("AUTH_LOGIN_RATE_BURST", 10),
		},
	}
}

// Validate checks the settings the token signer cannot run without.
func (a AuthConfig) Validate() error {
	j := a.JWT
	switch {
	case j.SecretKey == "":
		return missing("AUTH_JWT_SECRET")
	case len(j.SecretKey) < minSecretLength:
		return invalid("AUTH_JWT_SECRET", "shorter than 32 bytes")
	case j.Issuer == "":
		return missing("AUTH_JWT_ISSUER")
	case j.Audience == "":
		return missing("AUTH_JWT_AUDIENCE")
	case j.AccessTTLMins == 0:
		return missing("AUTH_ACCESS_TOKEN_TTL_MINUTES")
	case j.AccessTTLMins < 0:
		return invalid("AUTH_ACCESS_TOKEN_TTL_MINUTES", j.AccessTTLMins)
	case j.RefreshTTLDays == 0:
		return missing("AUTH_REFRESH_TOKEN_TTL_DAYS")
	case j.RefreshTTLDays < 0:
		return invalid("AUTH_REFRESH_TOKEN_TTL_DAYS", j.RefreshTTLDays)
	}

	switch a.Session.Store {
	case "postgres", "redis", "memory":
	default:
		return invalid("AUTH_REFRESH_STORE", a.Session.Store)
	}
	switch a.Session.ReuseResponse {
	case "reject", "revoke_chain":
	default:
		return invalid("AUTH_REFRESH_REUSE_RESPONSE", a.Session.ReuseResponse)
	}
	if a.Session.ReuseGrace < 0 {
		return invalid("AUTH_REFRESH_REUSE_GRACE", a.Session.ReuseGrace)
	}
	if a.Password.BcryptCost < 4 || a.Password.BcryptCost > 31 {
		return invalid("AUTH_BCRYPT_COST", a.Password.BcryptCost)
	}
	return nil
}
