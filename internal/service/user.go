package service

import (
	"context"
	"errors"
	"log/slog"
	"mime/multipart"
	"strings"

	"github.com/magicjournal/server/internal/apperr"
	"github.com/magicjournal/server/internal/model"
	"github.com/magicjournal/server/internal/repository"
	"github.com/magicjournal/server/internal/validation"
)

type UserService struct {
	userRepository repository.UserRepository
	fileService    *FileService
}

func NewUserService(userRepository repository.UserRepository, fileService *FileService) *UserService {
	return &UserService{
		userRepository: userRepository,
		fileService:    fileService,
	}
}

// ByID loads the profile with its avatar link
func (s *UserService) ByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepository.ByID(ctx, id)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load user", err)
	}

	user.AvatarURL = s.fileService.AvatarURL(ctx, id)
	return user, nil
}

func (s *UserService) Update(ctx context.Context, id string, upd model.UserUpdate) (*model.User, error) {
	if upd.Name == nil && upd.Bio == nil && upd.Theme == nil && upd.Onboarded == nil {
		return nil, apperr.BadRequest("no updatable fields provided")
	}

	user, err := s.ByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		err = validation.ValidateName(*upd.Name)
		if err != nil {
			return nil, apperr.BadRequest("%s", err.Error())
		}
		user.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Bio != nil {
		bio := strings.TrimSpace(*upd.Bio)
		err = validation.ValidateBio(bio)
		if err != nil {
			return nil, apperr.BadRequest("%s", err.Error())
		}
		user.Bio = bio
	}
	if upd.Theme != nil {
		if !model.ValidTheme(*upd.Theme) {
			return nil, apperr.BadRequest("theme must be one of light, dark, system")
		}
		user.Theme = *upd.Theme
	}
	if upd.Onboarded != nil {
		user.Onboarded = *upd.Onboarded
	}

	err = s.userRepository.Update(ctx, user)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, apperr.NotFound("user not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to update user", err)
	}

	slog.Info("profile updated", "user_id", id)
	return user, nil
}

// UploadAvatar stores the new image and then drops the previous one
func (s *UserService) UploadAvatar(ctx context.Context, id string, file multipart.File, header *multipart.FileHeader) (*model.User, error) {
	previous, err := s.fileService.Avatar(ctx, id)
	if err != nil && !errors.Is(err, repository.ErrFileNotFound) {
		return nil, apperr.Internal("failed to load avatar", err)
	}

	_, err = s.fileService.UploadAvatar(ctx, id, file, header)
	if err != nil {
		return nil, err
	}

	if previous != nil {
		err = s.fileService.Delete(ctx, previous)
		if err != nil {
			slog.Warn("failed to remove previous avatar", "error", err, "user_id", id)
		}
	}

	return s.ByID(ctx, id)
}

func (s *UserService) DeleteAvatar(ctx context.Context, id string) (*model.User, error) {
	err := s.fileService.DeleteAvatar(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.ByID(ctx, id)
}
