package ratelimit

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   Class
	}{
		{
			name:   "batch activity write",
			method: http.MethodPost,
			path:   "/api/v1/activity/batch",
			want:   ClassBatchWrite,
		},
		{
			name:   "single activity write",
			method: http.MethodPost,
			path:   "/api/v1/activity",
			want:   ClassSingleWrite,
		},
		{
			name:   "activity read",
			method: http.MethodGet,
			path:   "/api/v1/activity",
			want:   ClassRead,
		},
		{
			name:   "activity read with range",
			method: http.MethodGet,
			path:   "/api/v1/activity/daily",
			want:   ClassRead,
		},
		{
			name:   "project read",
			method: http.MethodGet,
			path:   "/api/v1/projects",
			want:   ClassProjectRead,
		},
		{
			name:   "overview read",
			method: http.MethodGet,
			path:   "/api/v1/overview/summary",
			want:   ClassOverviewRead,
		},
		{
			name:   "device initiate",
			method: http.MethodPost,
			path:   "/api/v1/auth/device",
			want:   ClassDeviceInit,
		},
		{
			name:   "device token poll",
			method: http.MethodPost,
			path:   "/api/v1/auth/device/token",
			want:   ClassDeviceInit,
		},
		{
			name:   "device confirm wins over device prefix",
			method: http.MethodPost,
			path:   "/api/v1/auth/device/confirm",
			want:   ClassDeviceConfirm,
		},
		{
			name:   "unversioned api root",
			method: http.MethodPost,
			path:   "/api/auth/device",
			want:   ClassDeviceInit,
		},
		{
			name:   "unmatched path",
			method: http.MethodGet,
			path:   "/healthz",
			want:   ClassDefault,
		},
		{
			name:   "unmatched method on activity",
			method: http.MethodDelete,
			path:   "/api/v1/activity",
			want:   ClassDefault,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.method, tt.path))
		})
	}
}
