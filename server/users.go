package server

import (
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/turnon/wattwise/store/common"
)

func init() {
	// 校验错误里使用json字段名
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	}
}

type registerRequest struct {
	Username string `json:"username" binding:"required,min=3,max=32"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=32"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// bindingViolations 把绑定错误转成可读的列表
func bindingViolations(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []string{err.Error()}
	}
	res := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			res = append(res, fmt.Sprintf("%s failed on %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			res = append(res, fmt.Sprintf("%s failed on %s", fe.Field(), fe.Tag()))
		}
	}
	return res
}

// passwordViolations 8到32位，不含空白，至少一个数字、小写和大写字母
func passwordViolations(password string) []string {
	var digit, lower, upper, space bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsSpace(r):
			space = true
		}
	}

	var v []string
	if !digit {
		v = append(v, "password must contain a digit")
	}
	if !lower {
		v = append(v, "password must contain a lower case letter")
	}
	if !upper {
		v = append(v, "password must contain an upper case letter")
	}
	if space {
		v = append(v, "password must not contain whitespace")
	}
	return v
}

// register 注册用户
func (api *ApplicationInterface) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logWarn(c, err)
		validationFailed(c, bindingViolations(err))
		return
	}
	if v := passwordViolations(req.Password); len(v) > 0 {
		validationFailed(c, v)
		return
	}

	email := strings.ToLower(req.Email)
	userID := userIDFor(email)
	existing, err := api.store.Users().Get(c.Request.Context(), userID)
	if err != nil {
		api.serverError(c, err, "An error has occurred while registering the user")
		return
	}
	if existing != nil {
		c.JSON(http.StatusConflict, gin.H{"message": "There is another user with the same email"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		api.serverError(c, errors.Wrap(err, "hash password"), "An error has occurred while registering the user")
		return
	}

	user := common.User{UserID: userID, Username: req.Username, Email: email, HashedPassword: string(hashed)}
	if err := api.store.Users().Create(c.Request.Context(), user); err != nil {
		api.serverError(c, err, "An error has occurred while registering the user")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": userID})
}

// login 登录，返回用户token
func (api *ApplicationInterface) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logWarn(c, err)
		validationFailed(c, bindingViolations(err))
		return
	}

	user, err := api.store.Users().Get(c.Request.Context(), userIDFor(req.Email))
	if err != nil {
		api.serverError(c, err, "An error has occurred while logging in")
		return
	}
	if user == nil || bcrypt.CompareHashAndPassword([]byte(user.HashedPassword), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid email or password"})
		return
	}

	token, err := api.auth.signUser(user.UserID)
	if err != nil {
		api.serverError(c, err, "An error has occurred while logging in")
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
