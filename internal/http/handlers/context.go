package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/DannyIGuesss/el-frijolito-site/internal/auth"
	"github.com/DannyIGuesss/el-frijolito-site/internal/domain/user"
	"github.com/DannyIGuesss/el-frijolito-site/internal/http/middlewares"
)

func identityFrom(ctx *gin.Context) (user.Identity, bool) {
	return middlewares.IdentityFromContext(ctx)
}

func claimsFrom(ctx *gin.Context) (*auth.Claims, bool) {
	return middlewares.ClaimsFromContext(ctx)
}
