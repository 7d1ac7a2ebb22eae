// Package sandbox 在受控的子进程中执行大模型生成的 Python 代码，
// 提供超时控制与输出截断。
package sandbox
