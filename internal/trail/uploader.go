package trail

import (
	"context"

	"backend-accessnature/internal/route"
)

// Uploader saves finished sessions for one user through the service.
type Uploader struct {
	svc    *Service
	userID string
}

func NewUploader(svc *Service, userID string) *Uploader {
	return &Uploader{svc: svc, userID: userID}
}

func (u *Uploader) SaveRoute(ctx context.Context, name string, session route.Session) (string, error) {
	r, err := u.svc.SaveRoute(ctx, u.userID, name, session)
	if err != nil {
		return "", err
	}
	return r.ID, nil
}
