// Package config 提供 mysteryshopper 的配置管理功能。
//
// 支持从默认值、YAML 文件、.env 文件和环境变量加载配置，
// 并在加载完成后统一校验。
package config
