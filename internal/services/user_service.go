package services

import (
	"stitchhub_backend/internal/appErrors"
	"stitchhub_backend/internal/auth"
	"stitchhub_backend/internal/models"
	"stitchhub_backend/internal/repositories"
	"stitchhub_backend/internal/services/dto"
)

type UserService interface {
	Login(req *dto.LoginRequest) (*dto.LoginResponse, error)
	GetByID(id string) (*models.User, error)
}

type userService struct {
	userRepo repositories.UserRepository
}

func NewUserService(userRepo repositories.UserRepository) UserService {
	return &userService{userRepo: userRepo}
}

func (s *userService) Login(req *dto.LoginRequest) (*dto.LoginResponse, error) {
	user, err := s.userRepo.FindByEmail(req.Email)
	if err != nil {
		// Не раскрываем, существует ли email
		return nil, appErrors.ErrInvalidCredentials
	}

	if !auth.CheckPasswordHash(req.Password, user.PasswordHash) {
		return nil, appErrors.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, appErrors.InternalError(err)
	}

	return &dto.LoginResponse{Token: token}, nil
}

func (s *userService) GetByID(id string) (*models.User, error) {
	user, err := s.userRepo.FindByID(id)
	if err != nil {
		return nil, appErrors.ErrUserNotFound.WithError(err)
	}
	return user, nil
}
