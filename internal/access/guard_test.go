package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	servermocks "github.com/klari-app/klari-server/internal/mocks"
	"github.com/klari-app/klari-server/internal/model"
)

func TestGuard_Caller(t *testing.T) {
	tests := map[string]struct {
		id      int64
		ok      bool
		wantID  int64
		wantErr error
	}{
		"authenticated":   {id: 5, ok: true, wantID: 5},
		"no identity":     {ok: false, wantErr: model.ErrUnauthenticated},
		"zero identity":   {id: 0, ok: true, wantErr: model.ErrUnauthenticated},
		"negative ignore": {id: -3, ok: true, wantErr: model.ErrUnauthenticated},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			cm := &servermocks.ContextManager{}
			cm.On("GetUserIDFromContext", mock.Anything).Return(tt.id, tt.ok)

			id, err := NewGuard(cm).Caller(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestAssertSelf(t *testing.T) {
	assert.NoError(t, AssertSelf(3, 3))
	assert.ErrorIs(t, AssertSelf(3, 4), model.ErrForbidden)
	assert.ErrorIs(t, AssertSelf(0, 4), model.ErrUnauthenticated)
}

func TestAssertOwner(t *testing.T) {
	routine := model.Routine{ID: 10, OwnerID: 8}
	assert.NoError(t, AssertOwner(8, routine))
	assert.ErrorIs(t, AssertOwner(9, routine), model.ErrForbidden)
}
