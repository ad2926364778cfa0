package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrDuplicateSlot 唯一约束冲突：(日期, 时段) 上已存在有效预约
var ErrDuplicateSlot = errors.New("该时段已存在有效预约")

// ErrTransient 存储层暂时性错误（超时、连接中断），调用方可重试
// 存储层内部不做重试，避免结果不明确时产生重复写入
var ErrTransient = errors.New("存储暂时不可用，请稍后重试")
