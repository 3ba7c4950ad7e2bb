package di

import (
	"go.uber.org/dig"

	"github.com/zhitang/backend-go/internal/config"
)

// Container 依赖注入容器的全局实例
var Container *dig.Container

// InitContainer 初始化依赖注入容器
func InitContainer() *dig.Container {
	Container = dig.New()
	return Container
}

// Build 创建全局容器并注册全部提供者
func Build(cfg *config.Config) (*dig.Container, error) {
	container := InitContainer()
	if err := RegisterProviders(container, cfg); err != nil {
		return nil, err
	}
	return container, nil
}

// Invoke 在全局容器上调用，参数由容器按类型注入
func Invoke(function interface{}, opts ...dig.InvokeOption) error {
	return Container.Invoke(function, opts...)
}
