package services

import (
	"errors"

	"github.com/yoockh/xiaomian/internal/utils"
)

// repoErr classifies a repository error. notFound is the message returned to
// clients when the row is missing.
func repoErr(op string, err error, notFound string) error {
	switch {
	case errors.Is(err, utils.ErrNotFound):
		return utils.E(utils.CodeNotFound, op, notFound, err)
	case errors.Is(err, utils.ErrDuplicate), errors.Is(err, utils.ErrStateConflict):
		return utils.E(utils.CodeConflict, op, "resource state changed", err)
	}
	return utils.E(utils.CodeInternal, op, "storage error", err)
}
