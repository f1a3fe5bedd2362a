package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// permission 接口需要的权限
type permission int

const (
	permissionPublic permission = iota
	// permissionUser 只接受用户token
	permissionUser
	// permissionDevice 接受该设备的token或用户token
	permissionDevice
)

type tokenKind string

const (
	userToken   tokenKind = "user"
	deviceToken tokenKind = "device"
)

const (
	claimsKey    = "claims"
	userTokenTTL = 30 * 24 * time.Hour
)

var errUnauthorized = errors.New("unauthorized")

// claims token内容
type claims struct {
	Kind     tokenKind `json:"kind"`
	UserID   string    `json:"user_id"`
	DeviceID string    `json:"device_id,omitempty"`
	jwt.StandardClaims
}

// authority 签发和校验token
type authority struct {
	secret []byte
	now    func() time.Time
}

// userIDFor 用户id由邮箱生成
func userIDFor(email string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("mailto:"+strings.ToLower(email))).String()
}

// signUser 签发用户token
func (auth *authority) signUser(userID string) (string, error) {
	now := auth.now()
	return auth.sign(claims{
		Kind:   userToken,
		UserID: userID,
		StandardClaims: jwt.StandardClaims{
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(userTokenTTL).Unix(),
		},
	})
}

// signDevice 签发设备token，不过期
func (auth *authority) signDevice(deviceID, userID string) (string, error) {
	return auth.sign(claims{
		Kind:     deviceToken,
		UserID:   userID,
		DeviceID: deviceID,
		StandardClaims: jwt.StandardClaims{
			IssuedAt: auth.now().Unix(),
		},
	})
}

func (auth *authority) sign(c claims) (string, error) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(auth.secret)
	return token, errors.Wrap(err, "sign token")
}

// parse 校验Bearer token
func (auth *authority) parse(header string) (*claims, error) {
	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" || raw == header {
		return nil, errUnauthorized
	}

	token, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errUnauthorized
		}
		return auth.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, errUnauthorized
	}
	c, ok := token.Claims.(*claims)
	if !ok || c.UserID == "" {
		return nil, errUnauthorized
	}
	return c, nil
}

// require 检查权限，通过后把claims放进上下文
func (api *ApplicationInterface) require(level permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		if level == permissionPublic {
			c.Next()
			return
		}

		cl, err := api.auth.parse(c.GetHeader("Authorization"))
		if err != nil || !allowed(level, cl, c.Param("device_id")) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized"})
			return
		}
		c.Set(claimsKey, cl)
		c.Next()
	}
}

func allowed(level permission, cl *claims, deviceID string) bool {
	switch cl.Kind {
	case userToken:
		return true
	case deviceToken:
		return level == permissionDevice && (deviceID == "" || deviceID == cl.DeviceID)
	}
	return false
}

// authenticatedUserID 当前用户
func authenticatedUserID(c *gin.Context) string {
	v, ok := c.Get(claimsKey)
	if !ok {
		return ""
	}
	return v.(*claims).UserID
}
