package main

import (
	"fmt"
	"sort"

	"github.com/newthinker/stockpick/internal/config"
	"github.com/newthinker/stockpick/internal/notifier"
	"github.com/newthinker/stockpick/internal/notifier/telegram"
	"github.com/newthinker/stockpick/internal/notifier/webhook"
)

// buildNotifiers registers every enabled notifier. It returns nil when
// none are enabled.
func buildNotifiers(cfgs map[string]config.NotifierConfig) (*notifier.Registry, error) {
	names := make([]string, 0, len(cfgs))
	for name := range cfgs {
		names = append(names, name)
	}
	sort.Strings(names)

	reg := notifier.NewRegistry()
	for _, name := range names {
		nc := cfgs[name]
		if !nc.Enabled {
			continue
		}

		var n notifier.Notifier
		params := map[string]any{}
		switch name {
		case "webhook":
			n = webhook.New("", nil)
			params["url"] = nc.URL
			params["headers"] = nc.Headers
		case "telegram":
			n = telegram.New("", "")
			params["bot_token"] = nc.BotToken
			params["chat_id"] = nc.ChatID
			params["base_url"] = nc.BaseURL
		default:
			return nil, fmt.Errorf("unknown notifier %q", name)
		}

		if err := n.Init(notifier.Config{Type: name, Params: params}); err != nil {
			return nil, err
		}
		if err := reg.Register(n); err != nil {
			return nil, err
		}
	}

	if reg.Len() == 0 {
		return nil, nil
	}
	return reg, nil
}
