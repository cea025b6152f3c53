package ui

import (
	"fmt"
	"log/slog"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/robfig/cron/v3"
)

// Sender はメッセージをUIに送る。*tea.Program が満たす。
type Sender interface {
	Send(msg tea.Msg)
}

// StartWeatherSchedule はspecのスケジュールで天気の再取得をUIに通知するcronを開始する。
// 呼び出し元は終了時にStopを呼ぶこと。
func StartWeatherSchedule(p Sender, spec string, logger *slog.Logger) (*cron.Cron, error) {
	scheduler := cron.New()
	_, err := scheduler.AddFunc(spec, func() {
		logger.Debug("weather refresh tick")
		p.Send(weatherTickMsg{})
	})
	if err != nil {
		return nil, fmt.Errorf("invalid weather refresh schedule %q: %w", spec, err)
	}
	scheduler.Start()
	return scheduler, nil
}
