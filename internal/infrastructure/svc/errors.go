package svc

import "errors"

// ErrStreamNotRegistered 配置的交易所没有注册 K 线流
var ErrStreamNotRegistered = errors.New("kline stream not registered for exchange")

// ErrStorageInitFailed 错误：存储初始化失败
var ErrStorageInitFailed = errors.New("storage initialization failed")
