// Package bucket реализует детерминированное разбиение 50/50 по стабильному seed.
//
// Используется только как гейт показа предложения. Это не плечо A/B эксперимента:
// плечо выбирается криптографически случайно и закрепляется в хранилище.
package bucket

import "hash/fnv"

// Hash возвращает 32-битный FNV-1a хеш строки.
func Hash(seed string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(seed))
	return h.Sum32()
}

// Half возвращает true ровно для половины seed-ов (чётный хеш).
// Для одного и того же seed результат всегда одинаков.
func Half(seed string) bool {
	return Hash(seed)&1 == 0
}
