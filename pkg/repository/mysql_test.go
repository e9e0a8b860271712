package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/apperr"
)

func TestGormErr(t *testing.T) {
	assert.NoError(t, gormErr(nil, "order"))
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(gormErr(gorm.ErrRecordNotFound, "order ORD-1")))
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(gormErr(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), "order ORD-1")))
	assert.Equal(t, apperr.KindPersistenceFailure, apperr.KindOf(gormErr(errors.New("bad connection"), "order ORD-1")))
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "cart:abc", cartKey("abc"))
	assert.Equal(t, "product:p1", productKey("p1"))
}
