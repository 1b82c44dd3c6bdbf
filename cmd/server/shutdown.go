package main

import (
	"context"
	"errors"
	"fmt"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/rs/zerolog/log"
)

// step 是关停序列中的一步。
type step struct {
	name string
	run  func(context.Context) error
}

// sequence 把各步骤合并为一个关停操作，按给定顺序依次执行。
// gfshutdown 会并发执行 map 中的每个操作，有先后依赖的清理只能放在同一个操作里。
// 某一步失败时记录日志并继续执行后面的步骤。
func sequence(steps []step) gfshutdown.Operation {
	return func(ctx context.Context) error {
		var errs []error
		for _, s := range steps {
			if err := s.run(ctx); err != nil {
				log.Error().Err(err).Str("step", s.name).Msg("shutdown")
				errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
				continue
			}
			log.Info().Str("step", s.name).Msg("shutdown")
		}
		return errors.Join(errs...)
	}
}
