package services

import (
  "context"
  "fmt"
  "time"

  "github.com/golang-jwt/jwt/v5"
  "github.com/google/uuid"
  "golang.org/x/crypto/bcrypt"
  "gorm.io/gorm"

  "github.com/sagebridge-health/sagebridge-backend/internal/logger"
  "github.com/sagebridge-health/sagebridge-backend/internal/normalization"
  "github.com/sagebridge-health/sagebridge-backend/internal/repos"
  "github.com/sagebridge-health/sagebridge-backend/internal/requestdata"
  "github.com/sagebridge-health/sagebridge-backend/internal/types"
)

type JWTClaims struct {
  Role string `json:"role"`
  jwt.RegisteredClaims
}

type AuthService interface {
  RegisterUser(ctx context.Context, user *types.User) error
  LoginUser(ctx context.Context, email, password string) (string, string, error)
  RefreshUser(ctx context.Context, refreshToken string) (string, string, error)
  LogoutUser(ctx context.Context) error
  SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
  GetAccessTTL() time.Duration
}

type authService struct {
  db            *gorm.DB
  log           *logger.Logger
  userRepo      repos.UserRepo
  userTokenRepo repos.UserTokenRepo
  jwtSecretKey  string
  accessTTL     time.Duration
  refreshTTL    time.Duration
}

func NewAuthService(
  db *gorm.DB,
  baseLog *logger.Logger,
  userRepo repos.UserRepo,
  userTokenRepo repos.UserTokenRepo,
  jwtSecretKey string,
  accessTTL time.Duration,
  refreshTTL time.Duration,
) AuthService {
  serviceLog := baseLog.With("service", "AuthService")
  return &authService{
    db:            db,
    log:           serviceLog,
    userRepo:      userRepo,
    userTokenRepo: userTokenRepo,
    jwtSecretKey:  jwtSecretKey,
    accessTTL:     accessTTL,
    refreshTTL:    refreshTTL,
  }
}

func (as *authService) RegisterUser(ctx context.Context, user *types.User) error {
  user.Email = normalization.ParseInputString(user.Email)
  user.FirstName = normalization.TrimInputString(user.FirstName)
  user.LastName = normalization.TrimInputString(user.LastName)
  if user.Email == "" || user.Password == "" || user.FirstName == "" || user.LastName == "" {
    return fmt.Errorf("%w: email, password, first name and last name are required", ErrValidation)
  }
  switch user.Role {
  case "":
    user.Role = types.RoleTherapist
  case types.RoleTherapist, types.RoleClient:
  default:
    return fmt.Errorf("%w: role %q is not one of therapist/client", ErrValidation, user.Role)
  }
  exists, err := as.userRepo.EmailExists(ctx, nil, user.Email)
  if err != nil {
    return fmt.Errorf("check email: %w", err)
  }
  if exists {
    return fmt.Errorf("%w: email already registered", ErrConflict)
  }
  hashed, err := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.DefaultCost)
  if err != nil {
    as.log.Error("Password hash failed", "error", err)
    return fmt.Errorf("hash password: %w", err)
  }
  user.Password = string(hashed)
  user.ID = uuid.New()
  user.CreatedAt = time.Now()
  user.UpdatedAt = time.Now()
  if _, err := as.userRepo.Create(ctx, nil, []*types.User{user}); err != nil {
    return fmt.Errorf("create user: %w", err)
  }
  as.log.Info("User registered", "user_id", user.ID, "role", user.Role)
  return nil
}

func (as *authService) LoginUser(ctx context.Context, email, password string) (string, string, error) {
  email = normalization.ParseInputString(email)
  if email == "" || password == "" {
    return "", "", fmt.Errorf("%w: email and password are required", ErrValidation)
  }
  user, err := as.userRepo.GetByEmail(ctx, nil, email)
  if err != nil {
    return "", "", fmt.Errorf("load user: %w", err)
  }
  if user == nil {
    return "", "", fmt.Errorf("%w: invalid email or password", ErrForbidden)
  }
  if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
    return "", "", fmt.Errorf("%w: invalid email or password", ErrForbidden)
  }

  var accessToken string
  var refreshToken string
  txErr := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    // One refresh token per user; a fresh login revokes any earlier one.
    if err := as.userTokenRepo.DeleteByUserID(ctx, tx, user.ID); err != nil {
      return fmt.Errorf("revoke existing token: %w", err)
    }
    tok, genErr := as.generateAccessToken(user)
    if genErr != nil {
      return fmt.Errorf("generate access token: %w", genErr)
    }
    accessToken = tok
    refreshToken = uuid.New().String()
    userToken := &types.UserToken{
      ID:           uuid.New(),
      UserID:       user.ID,
      RefreshToken: refreshToken,
      ExpiresAt:    time.Now().Add(as.refreshTTL),
      CreatedAt:    time.Now(),
      UpdatedAt:    time.Now(),
    }
    if _, err := as.userTokenRepo.Create(ctx, tx, []*types.UserToken{userToken}); err != nil {
      return fmt.Errorf("create user token: %w", err)
    }
    return nil
  })
  if txErr != nil {
    as.log.Warn("Login transaction failed", "error", txErr)
    return "", "", txErr
  }
  return accessToken, refreshToken, nil
}

func (as *authService) RefreshUser(ctx context.Context, refreshToken string) (string, string, error) {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return "", "", fmt.Errorf("%w: no identity in context", ErrForbidden)
  }
  if refreshToken == "" {
    return "", "", fmt.Errorf("%w: refresh token is required", ErrValidation)
  }

  var accessToken string
  var newRefreshToken string
  txErr := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    existing, err := as.userTokenRepo.GetByUserID(ctx, tx, rd.UserID)
    if err != nil {
      return fmt.Errorf("load user token: %w", err)
    }
    if existing == nil || existing.RefreshToken != refreshToken {
      return fmt.Errorf("%w: unknown refresh token", ErrForbidden)
    }
    if existing.ExpiresAt.Before(time.Now()) {
      if dErr := as.userTokenRepo.DeleteByUserID(ctx, tx, rd.UserID); dErr != nil {
        return fmt.Errorf("delete expired token: %w", dErr)
      }
      return fmt.Errorf("%w: refresh token expired", ErrForbidden)
    }
    user, err := as.userRepo.GetByID(ctx, tx, rd.UserID)
    if err != nil {
      return fmt.Errorf("load user: %w", err)
    }
    if user == nil {
      return fmt.Errorf("%w: user %s", ErrNotFound, rd.UserID)
    }
    tok, genErr := as.generateAccessToken(user)
    if genErr != nil {
      return fmt.Errorf("generate access token: %w", genErr)
    }
    accessToken = tok
    newRefreshToken = uuid.New().String()
    if dErr := as.userTokenRepo.DeleteByUserID(ctx, tx, user.ID); dErr != nil {
      return fmt.Errorf("rotate token: %w", dErr)
    }
    rotated := &types.UserToken{
      ID:           uuid.New(),
      UserID:       user.ID,
      RefreshToken: newRefreshToken,
      ExpiresAt:    time.Now().Add(as.refreshTTL),
      CreatedAt:    time.Now(),
      UpdatedAt:    time.Now(),
    }
    if _, err := as.userTokenRepo.Create(ctx, tx, []*types.UserToken{rotated}); err != nil {
      return fmt.Errorf("create rotated token: %w", err)
    }
    return nil
  })
  if txErr != nil {
    as.log.Warn("Refresh transaction failed", "error", txErr)
    return "", "", txErr
  }
  return accessToken, newRefreshToken, nil
}

func (as *authService) LogoutUser(ctx context.Context) error {
  rd := requestdata.GetRequestData(ctx)
  if rd == nil {
    return fmt.Errorf("%w: no identity in context", ErrForbidden)
  }
  return as.userTokenRepo.DeleteByUserID(ctx, nil, rd.UserID)
}

func (as *authService) generateAccessToken(user *types.User) (string, error) {
  claims := JWTClaims{
    Role: user.Role,
    RegisteredClaims: jwt.RegisteredClaims{
      Subject:   user.ID.String(),
      ExpiresAt: jwt.NewNumericDate(time.Now().Add(as.accessTTL)),
      IssuedAt:  jwt.NewNumericDate(time.Now()),
    },
  }
  token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
  return token.SignedString([]byte(as.jwtSecretKey))
}

func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
  if tokenString == "" {
    return ctx, nil
  }
  parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
    if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
      return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
    }
    return []byte(as.jwtSecretKey), nil
  })
  if err != nil {
    return ctx, fmt.Errorf("parse token: %w", err)
  }
  claims, ok := parsedToken.Claims.(*JWTClaims)
  if !ok || !parsedToken.Valid {
    return ctx, fmt.Errorf("invalid or expired token")
  }
  userID, err := uuid.Parse(claims.Subject)
  if err != nil {
    return ctx, fmt.Errorf("invalid user id in token: %w", err)
  }
  rd := &requestdata.RequestData{
    TokenString: tokenString,
    UserID:      userID,
    Role:        claims.Role,
  }
  return requestdata.WithRequestData(ctx, rd), nil
}

func (as *authService) GetAccessTTL() time.Duration {
  return as.accessTTL
}
