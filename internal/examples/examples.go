// Package examples はサンプルリソースとそのタスクをまとめて登録します。
package examples

import (
	"fmt"
	"time"

	"github.com/yourusername/async-resource/internal/async"
	"github.com/yourusername/async-resource/internal/config"
	"github.com/yourusername/async-resource/internal/examples/double"
	"github.com/yourusername/async-resource/internal/examples/reorder"
	"github.com/yourusername/async-resource/internal/jobs"
)

// TaskRegistry はタスクを登録できるものです。jobs.Manager が実装します。
type TaskRegistry interface {
	Register(taskType string, fn jobs.TaskFunc)
}

// Registrar は API へのリソース登録先です。
type Registrar interface {
	Register(res async.Resource) (*async.Binding, error)
}

// RegisterTasks はワーカー側のタスクを登録します。
func RegisterTasks(reg TaskRegistry, cfg *config.Config) {
	reg.Register(double.TaskType, double.Task(time.Duration(cfg.DoubleDelaySeconds)*time.Second))
	reg.Register(reorder.TaskType, reorder.Task)
}

// RegisterResources は API 側のリソースを登録します。
func RegisterResources(reg Registrar, enq jobs.Enqueuer, cfg *config.Config) error {
	resources := []async.Resource{
		double.New(enq),
		reorder.New(enq, cfg.MaxUploadBytes),
	}
	for _, res := range resources {
		if _, err := reg.Register(res); err != nil {
			return fmt.Errorf("failed to register %s: %w", res.Meta().ResourceName, err)
		}
	}
	return nil
}
