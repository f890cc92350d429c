package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/magicjournal/server/internal/apperr"
	"github.com/magicjournal/server/internal/model"
	"github.com/magicjournal/server/internal/repository"
	"github.com/magicjournal/server/internal/storage"
	"github.com/magicjournal/server/internal/validation"
)

type FileService struct {
	fileRepo repository.FileRepository
	storage  storage.Storage
}

// NewFileService accepts a nil store, in which case uploads are rejected
func NewFileService(fileRepo repository.FileRepository, store storage.Storage) *FileService {
	return &FileService{
		fileRepo: fileRepo,
		storage:  store,
	}
}

func (s *FileService) Enabled() bool {
	return s.storage != nil
}

// UploadAvatar validates the image, stores it and records it for the user
func (s *FileService) UploadAvatar(ctx context.Context, userID string, file multipart.File, header *multipart.FileHeader) (*model.File, error) {
	if !s.Enabled() {
		return nil, apperr.InvalidState("avatar storage is not configured")
	}

	err := validation.ValidateFile(header, validation.ImageConstraints)
	if err != nil {
		return nil, apperr.BadRequest("%s", err.Error())
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	filename := uuid.New().String() + ext
	storagePath := path.Join("public", model.FileTypeAvatar+"s", filename)
	contentType := header.Header.Get("Content-Type")

	err = s.storage.Save(ctx, storagePath, contentType, file)
	if err != nil {
		return nil, apperr.Upstream("failed to store avatar", err)
	}

	record := &model.File{
		ID:           uuid.New().String(),
		UserID:       userID,
		OwnerType:    model.OwnerTypeUser,
		OwnerID:      userID,
		Type:         model.FileTypeAvatar,
		Filename:     filename,
		OriginalName: header.Filename,
		MimeType:     contentType,
		Size:         header.Size,
		StoragePath:  storagePath,
		Public:       true,
		CreatedAt:    time.Now(),
	}

	err = s.fileRepo.Create(ctx, record)
	if err != nil {
		delErr := s.storage.Delete(ctx, storagePath)
		if delErr != nil {
			slog.Error("failed to delete file from storage during cleanup", "error", delErr, "path", storagePath)
		}
		return nil, apperr.Internal("failed to create file record", err)
	}

	return record, nil
}

func (s *FileService) Avatar(ctx context.Context, userID string) (*model.File, error) {
	return s.fileRepo.FileByType(ctx, model.OwnerTypeUser, userID, model.FileTypeAvatar)
}

// AvatarURL returns the user's avatar link, or "" when there is none
func (s *FileService) AvatarURL(ctx context.Context, userID string) string {
	if !s.Enabled() {
		return ""
	}
	avatar, err := s.Avatar(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrFileNotFound) {
			slog.Warn("failed to load avatar", "error", err, "user_id", userID)
		}
		return ""
	}
	return s.storage.URL(ctx, avatar.StoragePath)
}

// DeleteAvatar removes the user's avatar. Missing avatars are not an error.
func (s *FileService) DeleteAvatar(ctx context.Context, userID string) error {
	avatar, err := s.Avatar(ctx, userID)
	if errors.Is(err, repository.ErrFileNotFound) {
		return nil
	}
	if err != nil {
		return apperr.Internal("failed to load avatar", err)
	}
	return s.Delete(ctx, avatar)
}

// Delete removes the object (best effort) and its record
func (s *FileService) Delete(ctx context.Context, file *model.File) error {
	if s.Enabled() {
		delErr := s.storage.Delete(ctx, file.StoragePath)
		if delErr != nil {
			slog.Error("failed to delete file from storage", "error", delErr, "path", file.StoragePath)
		}
	}

	err := s.fileRepo.Delete(ctx, file.ID)
	if err != nil && !errors.Is(err, repository.ErrFileNotFound) {
		return apperr.Internal(fmt.Sprintf("failed to delete file %s", file.ID), err)
	}
	return nil
}
