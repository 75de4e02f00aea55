// Package all 注册全部administradora（仅需空白导入）
package all

import (
	_ "ConsorcioSync/internal/adapter/gmac"
	_ "ConsorcioSync/internal/adapter/itau"
	_ "ConsorcioSync/internal/adapter/porto"
	_ "ConsorcioSync/internal/adapter/santander"
	_ "ConsorcioSync/internal/adapter/volkswagen"
)
