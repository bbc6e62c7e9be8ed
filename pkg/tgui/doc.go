// Package tgui provides small Telegram UI helpers:
//   - Inline and reply keyboard builders
//   - HTML-safe text building for ParseMode="HTML" (auto escaping)
package tgui
