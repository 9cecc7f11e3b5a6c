// Package jwt реализует генерацию и парсинг JWT токенов с идентификатором субъекта и ролью.
package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/magabrotheeeer/profinder/internal/models"
)

// Issuer значение поля iss у всех выпускаемых токенов.
const Issuer = "profinder"

// Maker описывает интерфейс для генерации и парсинга JWT токенов.
type Maker interface {
	GenerateToken(subjectID, role string) (string, error)
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// CustomClaims описывает пользовательские данные, хранящиеся в JWT.
// Идентификатор субъекта хранится в стандартном поле sub.
type CustomClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Caller возвращает вызывающего, описанного токеном.
func (c *CustomClaims) Caller() models.Caller {
	return models.Caller{SubjectID: c.Subject, Role: models.Role(c.Role)}
}

// MakerImpl реализует интерфейс Maker с использованием секретного ключа
// и времени жизни токена (TTL).
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewJWTMaker создаёт новый экземпляр MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
