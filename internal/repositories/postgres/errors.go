package postgres

import (
	"errors"

	"github.com/yoockh/xiaomian/internal/utils"
	"gorm.io/gorm"
)

// translate maps gorm errors onto repository sentinels. The pool is opened
// with TranslateError so unique violations arrive as gorm.ErrDuplicatedKey.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return utils.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return utils.ErrDuplicate
	}
	return err
}
