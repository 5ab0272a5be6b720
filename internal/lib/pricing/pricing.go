// Package pricing считает цены предложения для A/B эксперимента отмены подписки.
// Все цены передаются в минимальных единицах валюты (центах).
package pricing

import "github.com/magabrotheeeer/subscription-cancellation/internal/models"

// flatDiscount - фиксированная скидка плеча B, 10 единиц валюты.
const flatDiscount int64 = 1000

// teaserTable - известные цены плеча B с заданными значениями скидки.
var teaserTable = map[int64]int64{
	2500: 1500,
	2900: 1900,
}

// PriceForVariant возвращает цену, показываемую в предложении для плеча эксперимента.
// Для A цена не меняется, для B сначала используется таблица, иначе base-10, но не ниже нуля.
func PriceForVariant(base int64, variant models.Variant) int64 {
	if variant != models.VariantB {
		return base
	}
	if p, ok := teaserTable[base]; ok {
		return p
	}
	return max(0, base-flatDiscount)
}

// AcceptedDownsellPrice возвращает цену, которая записывается в подписку после принятия
// предложения 50% off: round(base * 0.5), половина округляется вверх.
func AcceptedDownsellPrice(base int64) int64 {
	if base <= 0 {
		return 0
	}
	return (base + 1) / 2
}

// ToMajor переводит центы в основные единицы валюты для отображения.
func ToMajor(minor int64) float64 {
	return float64(minor) / 100
}
