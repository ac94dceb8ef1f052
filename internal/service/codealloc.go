package service

import (
	"strconv"
)

// CodeAllocator выдаёт последовательные числовые коды товаров в рамках одного пакета.
// Не потокобезопасен: пакет обрабатывается строго последовательно.
type CodeAllocator struct {
	taken map[string]struct{}
	next  int64
}

// NewCodeAllocator строит состояние по существующим кодам.
// Числовые коды участвуют в максимуме, остальные только занимают пространство имён.
func NewCodeAllocator(existing []string) *CodeAllocator {
	a := &CodeAllocator{taken: make(map[string]struct{}, len(existing))}

	var maxCode int64
	for _, code := range existing {
		a.taken[code] = struct{}{}
		if n, ok := parseCode(code); ok && n > maxCode {
			maxCode = n
		}
	}
	a.next = maxCode + 1
	return a
}

// parseCode разбирает код из одних цифр в неотрицательное число
func parseCode(code string) (int64, bool) {
	if code == "" {
		return 0, false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseInt(code, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// StartAt переопределяет начальный код пакета. Отрицательное значение игнорируется.
func (a *CodeAllocator) StartAt(start int64) bool {
	if start < 0 {
		return false
	}
	a.next = start
	return true
}

// Next возвращает код, который будет выдан следующим Reserve
func (a *CodeAllocator) Next() string {
	n := a.next
	for a.isTaken(n) {
		n++
	}
	return strconv.FormatInt(n, 10)
}

func (a *CodeAllocator) isTaken(n int64) bool {
	_, ok := a.taken[strconv.FormatInt(n, 10)]
	return ok
}

// Reserve выдаёт следующий свободный код, пропуская занятые
func (a *CodeAllocator) Reserve() string {
	for a.isTaken(a.next) {
		a.next++
	}
	code := strconv.FormatInt(a.next, 10)
	a.next++
	return code
}

// Release возвращает неиспользованный код: следующий Reserve выдаст его снова
func (a *CodeAllocator) Release(code string) {
	if n, ok := parseCode(code); ok && n == a.next-1 {
		a.next = n
	}
}

// Commit помечает код использованным
func (a *CodeAllocator) Commit(code string) {
	a.taken[code] = struct{}{}
}
