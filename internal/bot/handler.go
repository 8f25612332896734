package bot

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"slices"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	tele "gopkg.in/telebot.v3"

	"github.com/eliseohh/jikanwaribot/internal/store"
	"github.com/eliseohh/jikanwaribot/internal/timetable"
	"github.com/eliseohh/jikanwaribot/internal/tracker"
)

const requestTimeout = 10 * time.Second

// Service is the timetable backend the handlers drive.
type Service interface {
	Register(ctx context.Context, userID string) (bool, error)
	Timetable(ctx context.Context, userID string) (string, error)
	Options(ctx context.Context, userID string, slot timetable.Slot) (string, []string, error)
	Edit(ctx context.Context, userID string, slot timetable.Slot, name string) (timetable.Edit, error)
	RecordToday(ctx context.Context, userID string) (timetable.Delta, error)
	Adjust(ctx context.Context, userID, course string, sign, scale int) (int, error)
	Report(ctx context.Context, userID string, mode timetable.Mode) (string, error)
}

type Bot struct {
	api *tele.Bot
	svc Service
	cfg Config
	log *zap.Logger
}

type Config struct {
	Token       string
	PollTimeout time.Duration
	// Scales are the allowed /absence step sizes; the first is the default.
	Scales []int
}

// setBtn is the callback endpoint of the /slot option keyboard.
var setBtn = &tele.Btn{Unique: "set"}

func New(cfg Config, svc Service, log *zap.Logger) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: cfg.PollTimeout},
		OnError: func(err error, c tele.Context) {
			log.Error("handler failed", zap.Error(err))
		},
	}

	api, err := tele.NewBot(pref)
	if err != nil {
		return nil, err
	}

	b := &Bot{api: api, svc: svc, cfg: cfg, log: log}
	b.register()
	return b, nil
}

// Start polls until Stop is called.
func (b *Bot) Start() {
	b.log.Info("bot started", zap.String("username", b.api.Me.Username))
	b.api.Start()
}

func (b *Bot) Stop() { b.api.Stop() }

func (b *Bot) register() {
	b.api.Use(b.logRequests)

	for name := range commandNames {
		b.api.Handle(name, b.handleCommand)
	}
	b.api.Handle(setBtn, b.handleSetCallback)

	// Free text goes through the same parser and is rejected there.
	b.api.Handle(tele.OnText, b.handleCommand)
}

// handleCommand parses the message and runs the matching operation.
func (b *Bot) handleCommand(c tele.Context) error {
	var text string
	if m := c.Message(); m != nil {
		text = m.Text
	}
	cmd, err := ParseCommand(text, b.cfg.Scales[0])
	if err != nil {
		return b.fail(c, err)
	}

	switch cmd.Kind {
	case CmdStart:
		return b.signUp(c)
	case CmdTimetable:
		return b.showTimetable(c)
	case CmdSlot:
		return b.showSlot(c, cmd.Slot)
	case CmdSet:
		return b.applySet(c, cmd.Set)
	case CmdToday:
		return b.recordToday(c)
	case CmdAbsence:
		return b.adjustAbsence(c, cmd.Adjust)
	case CmdReport:
		return b.showReport(c, cmd.Mode)
	default:
		return c.Send("⛔ コマンドを使ってください。/timetable /slot /set /today /absence /report")
	}
}

func (b *Bot) logRequests(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		start := time.Now()
		err := next(c)
		fields := []zap.Field{zap.Duration("took", time.Since(start))}
		if u := c.Sender(); u != nil {
			fields = append(fields, zap.Int64("user", u.ID))
		}
		if m := c.Message(); m != nil {
			fields = append(fields, zap.String("text", m.Text))
		}
		b.log.Debug("update handled", fields...)
		return err
	}
}

func userID(c tele.Context) string {
	if u := c.Sender(); u != nil {
		return strconv.FormatInt(u.ID, 10)
	}
	return ""
}

func (b *Bot) signUp(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	created, err := b.svc.Register(ctx, userID(c))
	if err != nil {
		return b.fail(c, err)
	}
	if !created {
		return c.Send("👋 登録済みです。/timetable で時間割を確認できます。")
	}
	return c.Send("✅ 登録しました。/slot と /set で時間割を作成してください。")
}

func (b *Bot) showTimetable(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	out, err := b.svc.Timetable(ctx, userID(c))
	if err != nil {
		return b.fail(c, err)
	}
	return c.Send(out)
}

// showSlot lists the current course and numbered options with a keyboard.
func (b *Bot) showSlot(c tele.Context, slot timetable.Slot) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	current, opts, err := b.svc.Options(ctx, userID(c), slot)
	if err != nil {
		return b.fail(c, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 %s (%s)\n現在: %s\n", slot, slot.Key(), current)
	markup := &tele.ReplyMarkup{}
	var rows []tele.Row
	for i, name := range opts {
		fmt.Fprintf(&sb, "%d. %s\n", i, name)
		rows = append(rows, markup.Row(markup.Data(name, setBtn.Unique, slot.Key(), strconv.Itoa(i), optionTag(name))))
	}
	markup.Inline(rows...)
	fmt.Fprintf(&sb, "\n/set %s <番号> で変更", slot.Key())
	return c.Send(sb.String(), markup)
}

// optionTag fingerprints an option name so a keyboard tap can be checked
// against the current option list. Course names can exceed Telegram's
// 64-byte callback data limit, so the name itself is not sent.
func optionTag(name string) string {
	h := fnv.New32a()
	h.Write([]byte(name))
	return strconv.FormatUint(uint64(h.Sum32()), 36)
}

// handleSetCallback serves a tap on the /slot keyboard: data is
// "<key>|<n>|<tag>".
func (b *Bot) handleSetCallback(c tele.Context) error {
	data := c.Args()
	if len(data) != 3 || data[2] == "" {
		return c.Respond(&tele.CallbackResponse{Text: "⛔ invalid button"})
	}
	slot, err := timetable.SlotFromKey(data[0])
	if err != nil {
		return c.Respond(&tele.CallbackResponse{Text: "⛔ invalid button"})
	}
	n, err := strconv.Atoi(data[1])
	if err != nil || n < 0 {
		return c.Respond(&tele.CallbackResponse{Text: "⛔ invalid button"})
	}
	if err := c.Respond(); err != nil {
		b.log.Warn("callback not acknowledged", zap.Error(err))
	}
	return b.applySet(c, SetArgs{Slot: slot, Choice: n, Tag: data[2]})
}

func (b *Bot) applySet(c tele.Context, args SetArgs) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	uid := userID(c)

	name := args.Name
	if args.Choice >= 0 {
		_, opts, err := b.svc.Options(ctx, uid, args.Slot)
		if err != nil {
			return b.fail(c, err)
		}
		if args.Choice >= len(opts) {
			return c.Send(fmt.Sprintf("⛔ 番号は 0..%d です", len(opts)-1))
		}
		name = opts[args.Choice]
		if args.Tag != "" && optionTag(name) != args.Tag {
			return c.Send("⚠️ 選択肢が更新されました。もう一度 /slot を実行してください")
		}
	}

	ed, err := b.svc.Edit(ctx, uid, args.Slot, name)
	if err != nil {
		return b.fail(c, err)
	}
	if !ed.Changed {
		return c.Send(fmt.Sprintf("ℹ️ %s は既に %s です", args.Slot, name))
	}

	msg := fmt.Sprintf("✅ %s → %s", args.Slot, name)
	if len(ed.Delta.Delete) > 0 {
		msg += "\n🗑 削除: " + strings.Join(ed.Delta.Delete, ", ")
	}
	return c.Send(msg)
}

func (b *Bot) recordToday(c tele.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	d, err := b.svc.RecordToday(ctx, userID(c))
	if err != nil {
		return b.fail(c, err)
	}
	if d.IsEmpty() {
		return c.Send("ℹ️ 今日の授業はありません")
	}

	var sb strings.Builder
	sb.WriteString("✅ 今日の欠席を記録しました")
	for _, name := range d.SetNames() {
		fmt.Fprintf(&sb, "\n%s : %d", name, d.Set[name])
	}
	return c.Send(sb.String())
}

func (b *Bot) adjustAbsence(c tele.Context, args AdjustArgs) error {
	if !slices.Contains(b.cfg.Scales, args.Scale) {
		return c.Send(fmt.Sprintf("⛔ 単位は %v のいずれかです", b.cfg.Scales))
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	n, err := b.svc.Adjust(ctx, userID(c), args.Course, args.Sign, args.Scale)
	if err != nil {
		return b.fail(c, err)
	}
	return c.Send(fmt.Sprintf("✅ %s : %d", args.Course, n))
}

func (b *Bot) showReport(c tele.Context, mode timetable.Mode) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	out, err := b.svc.Report(ctx, userID(c), mode)
	if err != nil {
		return b.fail(c, err)
	}
	return c.Send(out)
}

// fail turns a domain error into a reply. Store failures are logged and
// reported generically.
func (b *Bot) fail(c tele.Context, err error) error {
	var (
		unknown   *timetable.UnknownCourseError
		slot      *timetable.InvalidSlotError
		placement *timetable.InvalidPlacementError
		persist   *timetable.PersistenceError
		usage     usageError
	)
	switch {
	case errors.Is(err, store.ErrNotRegistered):
		return c.Send("⛔ 未登録です。/start で登録してください。")
	case errors.Is(err, tracker.ErrNoCatalog):
		return c.Send("⚠️ 科目一覧を読み込み中です。しばらくしてからお試しください。")
	case errors.Is(err, timetable.ErrNoClassDay):
		return c.Send("ℹ️ 土日は授業がありません")
	case errors.Is(err, timetable.ErrNotScheduled):
		return c.Send("🔍 時間割にない科目です")
	case errors.As(err, &unknown):
		return c.Send(fmt.Sprintf("🔍 科目が見つかりません: %s", unknown.Name))
	case errors.As(err, &slot):
		return c.Send("⛔ コマの指定が不正です (101..130 または 水3)")
	case errors.As(err, &placement):
		return c.Send(fmt.Sprintf("⛔ %s は %s に置けません", placement.Course, placement.Slot))
	case errors.As(err, &persist):
		b.log.Error("store failure", zap.String("user", userID(c)), zap.Error(err))
		return c.Send("⚠️ 保存に失敗しました。変更は元に戻しました。")
	case errors.As(err, &usage):
		return c.Send("⛔ " + usage.Error())
	default:
		b.log.Error("request failed", zap.String("user", userID(c)), zap.Error(err))
		return c.Send("⚠️ エラーが発生しました")
	}
}
