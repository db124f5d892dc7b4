package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	errs "github.com/roadpulse/roadpulse/errors"
	"github.com/roadpulse/roadpulse/models"
	"github.com/roadpulse/roadpulse/server/response"
	"github.com/roadpulse/roadpulse/services/jwt"
)

func respondAndAbort(c *gin.Context, message string, status int, data interface{}, err error) {
	response.JSON(c, message, status, data, err)
	c.Abort()
}

func getTokenFromHeader(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// Authorize validates the bearer token, rejects blacklisted tokens, loads
// the acting user and puts it on the context for the handlers.
func (s *Server) Authorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		accessToken := getTokenFromHeader(c)
		if accessToken == "" {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.New("unauthorized", http.StatusUnauthorized))
			return
		}

		if s.AuthRepository.IsTokenInBlacklist(accessToken) {
			respondAndAbort(c, "access token is revoked", http.StatusUnauthorized, nil, errs.New("unauthorized", http.StatusUnauthorized))
			return
		}

		accessClaims, err := jwt.ValidateAndGetClaims(accessToken, s.Config.JWTSecret)
		if err != nil {
			respondAndAbort(c, "", http.StatusUnauthorized, nil, errs.New("unauthorized", http.StatusUnauthorized))
			return
		}

		var userID uint
		switch v := accessClaims["id"].(type) {
		case float64:
			userID = uint(v)
		default:
			respondAndAbort(c, "", http.StatusBadRequest, nil, errs.New("invalid userID format", http.StatusBadRequest))
			return
		}

		user, err := s.AuthRepository.FindUserByID(userID)
		if err != nil {
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				respondAndAbort(c, "user not found", http.StatusUnauthorized, nil, errs.New(err.Error(), http.StatusUnauthorized))
			default:
				respondAndAbort(c, "unable to find user", http.StatusInternalServerError, nil, errs.ErrInternalServerError)
			}
			return
		}

		c.Set("user", user)
		c.Set("userID", userID)
		c.Set("access_token", accessToken)
		c.Next()
	}
}

// GetUserFromContext returns the acting user set by Authorize.
func GetUserFromContext(c *gin.Context) (*models.User, error) {
	if userI, exists := c.Get("user"); exists {
		if user, ok := userI.(*models.User); ok {
			return user, nil
		}
	}
	return nil, errs.New("user is not logged in", http.StatusUnauthorized)
}

// reportCreationLimiter throttles report submission per user (spam control).
// Backed by Redis when configured so limits survive restarts and hold across
// replicas; falls back to an in-memory store otherwise.
func (s *Server) reportCreationLimiter() gin.HandlerFunc {
	var store ratelimit.Store
	rate := time.Minute
	limit := uint(10)

	if s.Config.RedisURL != "" {
		opt, err := redis.ParseURL(s.Config.RedisURL)
		if err == nil {
			store = ratelimit.RedisStore(&ratelimit.RedisOptions{
				RedisClient: redis.NewClient(opt),
				Rate:        rate,
				Limit:       limit,
			})
		}
	}
	if store == nil {
		store = ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
			Rate:  rate,
			Limit: limit,
		})
	}

	return ratelimit.RateLimiter(store, &ratelimit.Options{
		ErrorHandler: errs.ErrorHandler,
		KeyFunc: func(c *gin.Context) string {
			if userID, ok := c.Get("userID"); ok {
				if id, ok := userID.(uint); ok {
					return "report:" + strconv.FormatUint(uint64(id), 10)
				}
			}
			return "report:" + c.ClientIP()
		},
	})
}
