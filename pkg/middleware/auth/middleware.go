package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/scienceol/seqpanel/internal/config"
	"github.com/scienceol/seqpanel/pkg/common"
	"github.com/scienceol/seqpanel/pkg/common/code"
	"github.com/scienceol/seqpanel/pkg/middleware/logger"
	"github.com/scienceol/seqpanel/pkg/repo/model"
	"github.com/scienceol/seqpanel/pkg/utils"
	"golang.org/x/oauth2"
)

type AuthType string

const (
	AuthTypeBearer AuthType = "Bearer"

	OperatorHeader = "X-Operator"
	anonymous      = "operator"
)

type AuthFunc func(ctx *gin.Context, token string) *model.UserData

func ValidateToken(ctx context.Context, tokenType string, token string) (*model.UserData, error) {
	oauthConfig := GetOAuthConfig()
	oauthToken := &oauth2.Token{
		AccessToken: token,
		TokenType:   tokenType,
	}
	client := oauthConfig.Client(ctx, oauthToken)
	resp, err := client.Get(config.Global().OAuth2.UserInfoURL)
	if err != nil {
		logger.Errorf(ctx, "Failed to get user info: %v", err)
		return nil, code.InvalidToken
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, code.InvalidToken
	}
	result := &model.UserInfo{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil || result.Status != "ok" || result.Data == nil {
		return nil, code.InvalidToken
	}
	return result.Data, nil
}

// AuthWeb authenticates operators according to AUTH_SOURCE.
func AuthWeb() func(ctx *gin.Context) {
	conf := config.Global().Auth
	switch conf.AuthSource {
	case config.AuthNone:
		return func(ctx *gin.Context) {
			name := utils.Or(ctx.GetHeader(OperatorHeader), anonymous)
			ctx.Set(USERKEY, &model.UserData{ID: name, Name: name, DisplayName: name})
			ctx.Next()
		}
	case config.AuthJWT:
		return Auth(map[AuthType]AuthFunc{AuthTypeBearer: getJWTUser([]byte(conf.JWTSecret))})
	case config.AuthOAuth2:
		return Auth(map[AuthType]AuthFunc{AuthTypeBearer: getOAuth2User})
	default:
		panic("unknown auth source: " + string(conf.AuthSource))
	}
}

// AuthActor lets the actor bridge in when it presents ACTOR_TOKEN. An empty
// token disables the check.
func AuthActor() func(ctx *gin.Context) {
	want := []byte(config.Global().Actor.Token)
	return func(ctx *gin.Context) {
		if len(want) == 0 {
			ctx.Next()
			return
		}
		token := bearer(ctx)
		if token == "" || subtle.ConstantTimeCompare([]byte(token), want) != 1 {
			unauthorized(ctx, code.InvalidToken)
			return
		}
		ctx.Next()
	}
}

func bearer(ctx *gin.Context) string {
	authHeader := utils.Or(ctx.Query("access_token"), ctx.GetHeader("Authorization"))
	token, found := strings.CutPrefix(authHeader, string(AuthTypeBearer)+" ")
	if !found {
		return authHeader
	}
	return strings.TrimSpace(token)
}

func unauthorized(ctx *gin.Context, c code.ErrCode) {
	ctx.JSON(http.StatusUnauthorized, &common.Resp{
		Code:  c,
		Error: &common.Error{Msg: c.String()},
	})
	ctx.Abort()
}

func Auth(authFuncMap map[AuthType]AuthFunc) func(ctx *gin.Context) {
	return func(ctx *gin.Context) {
		cookie, _ := ctx.Cookie("access_token")
		queryToken := ctx.Query("access_token")
		if queryToken != "" {
			queryToken = string(AuthTypeBearer) + " " + queryToken
		}
		authHeader := utils.Or(cookie, queryToken, ctx.GetHeader("Authorization"))
		if authHeader == "" {
			unauthorized(ctx, code.UnLogin)
			return
		}
		tokens := strings.Split(authHeader, " ")
		if len(tokens) != 2 {
			unauthorized(ctx, code.LoginFormatErr)
			return
		}
		var userInfo *model.UserData
		if f, ok := authFuncMap[AuthType(tokens[0])]; ok {
			userInfo = f(ctx, tokens[1])
		}
		if userInfo == nil {
			unauthorized(ctx, code.InvalidToken)
			return
		}
		ctx.Set(USERKEY, userInfo)
		ctx.Next()
	}
}

func getOAuth2User(ctx *gin.Context, token string) *model.UserData {
	userInfo, err := ValidateToken(ctx, string(AuthTypeBearer), token)
	if err != nil {
		logger.Errorf(ctx, "Token validation failed: %v", err)
		return nil
	}
	return userInfo
}

func getJWTUser(secret []byte) AuthFunc {
	return func(ctx *gin.Context, token string) *model.UserData {
		claims := &utils.Claims{}
		if err := utils.ParseJWT(token, secret, claims); err != nil {
			logger.Errorf(ctx, "getJWTUser parse jwt token err: %v", err)
			return nil
		}
		name := utils.Or(claims.Name, claims.Subject)
		if name == "" {
			return nil
		}
		return &model.UserData{
			ID:          name,
			Name:        name,
			DisplayName: utils.Or(claims.DisplayName, name),
		}
	}
}

// GetCurrentUser works on the gin context and on any context derived from it.
func GetCurrentUser(ctx context.Context) *model.UserData {
	ud, _ := ctx.Value(USERKEY).(*model.UserData)
	return ud
}

// OperatorName is the name shown to other operators, never empty.
func OperatorName(ctx context.Context) string {
	if u := GetCurrentUser(ctx); u != nil {
		return utils.Or(u.Name, u.ID, anonymous)
	}
	return anonymous
}

