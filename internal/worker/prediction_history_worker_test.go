package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mushroom-classifier/internal/model"
)

type recorder struct {
	got []model.Prediction
	err error
}

func (r *recorder) Record(_ context.Context, p model.Prediction) error {
	if r.err != nil {
		return r.err
	}
	r.got = append(r.got, p)
	return nil
}

func TestProcess(t *testing.T) {
	rec := &recorder{}
	err := Process(context.Background(), rec, []byte(`{"user_id":3,"filename":"a.jpg","label":"bay_bolete","index":6,"score":0.9}`))
	require.NoError(t, err)
	require.Len(t, rec.got, 1)
	assert.EqualValues(t, 3, rec.got[0].UserID)
	assert.Equal(t, "bay_bolete", rec.got[0].Label)
	assert.Equal(t, 6, rec.got[0].Index)
}

func TestProcess_Rejects(t *testing.T) {
	rec := &recorder{}
	assert.Error(t, Process(context.Background(), rec, []byte(`{not json`)))
	assert.Error(t, Process(context.Background(), rec, []byte(`{"label":"x"}`)))
	assert.Empty(t, rec.got)

	failing := &recorder{err: errors.New("redis down")}
	assert.Error(t, Process(context.Background(), failing, []byte(`{"user_id":1}`)))
}
