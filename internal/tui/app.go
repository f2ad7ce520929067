package tui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/thegoddo/ripple/internal/api"
	"github.com/thegoddo/ripple/internal/archive"
	"github.com/thegoddo/ripple/internal/bus"
	"github.com/thegoddo/ripple/internal/chat"
	"github.com/thegoddo/ripple/internal/delivery"
	"github.com/thegoddo/ripple/internal/directory"
	"github.com/thegoddo/ripple/internal/presence"
	"github.com/thegoddo/ripple/internal/store"
	"github.com/thegoddo/ripple/internal/timeline"
	"github.com/thegoddo/ripple/internal/transport"
	"github.com/thegoddo/ripple/internal/tui/keys"
	"github.com/thegoddo/ripple/internal/tui/model"
	"github.com/thegoddo/ripple/internal/tui/ui"
	"github.com/thegoddo/ripple/internal/tui/views"
)

const flashDuration = 5 * time.Second

// App is the main TUI application shell. All state lives in the reducers
// (directory, timeline, tracker); the shell subscribes to their bus events
// and repaints through QueueUpdateDraw.
type App struct {
	app      *tview.Application
	pages    *tview.Pages
	registry *keys.Registry
	flash    *model.Flash

	dir       *directory.Directory
	tl        *timeline.Timeline
	tracker   *presence.Tracker
	debouncer *presence.Debouncer
	delivery  *delivery.Coordinator
	client    *api.Client
	db        *store.DB
	bus       *bus.Bus
	logger    *zap.Logger

	statusBar *views.StatusBar
	convList  *views.ConversationList
	filter    *tview.InputField
	msgView   *views.MessageView
	composer  *views.Composer
	searchV   *views.SearchView
	profileV  *views.ProfileView
	connectV  *views.ConnectPrompt

	screen tcell.Screen
	sound  bool

	identity     chat.Identity
	activeFriend chat.Friend

	ctx    context.Context
	cancel context.CancelFunc
}

// Params carries the app's collaborators.
type Params struct {
	Profile   string
	Sound     bool
	Directory *directory.Directory
	Timeline  *timeline.Timeline
	Tracker   *presence.Tracker
	Delivery  *delivery.Coordinator
	Client    *api.Client
	DB        *store.DB
	Bus       *bus.Bus
	Logger    *zap.Logger
}

// NewApp creates the TUI application.
func NewApp(p Params) *App {
	ctx, cancel := context.WithCancel(context.Background())
	theme := ui.DefaultTheme()

	a := &App{
		app:      tview.NewApplication(),
		pages:    tview.NewPages(),
		registry: keys.NewRegistry(),
		flash:    &model.Flash{},

		dir:      p.Directory,
		tl:       p.Timeline,
		tracker:  p.Tracker,
		delivery: p.Delivery,
		client:   p.Client,
		db:       p.DB,
		bus:      p.Bus,
		logger:   p.Logger,

		statusBar: views.NewStatusBar(),
		convList:  views.NewConversationList(theme),
		msgView:   views.NewMessageView(theme),
		composer:  views.NewComposer(),
		searchV:   views.NewSearchView(theme),
		profileV:  views.NewProfileView(theme),
		connectV:  views.NewConnectPrompt(theme),

		sound:  p.Sound,
		ctx:    ctx,
		cancel: cancel,
	}

	a.debouncer = presence.NewDebouncer(a.emitTyping, presence.DefaultQuiet)
	a.statusBar.SetProfile(p.Profile)

	a.setupBindings()
	a.setupCallbacks()
	a.setupLayout()

	return a
}

// SetIdentity installs the authenticated user. Call before Run.
func (a *App) SetIdentity(id chat.Identity) {
	a.identity = id
	a.convList.SetUserID(id.ID)
	a.msgView.SetUserID(id.ID)
	a.profileV.Update(id)
}

func (a *App) setupBindings() {
	a.registry.AddGlobal("quit", &keys.Action{
		Rune: 'q', Key: tcell.KeyRune,
		Description: "q:quit", Visible: true,
		Handler: func() { a.app.Stop() },
	})
	a.registry.AddGlobal("search", &keys.Action{
		Rune: 's', Key: tcell.KeyRune,
		Description: "s:search", Visible: true,
		Handler: func() { a.showPage("search", a.searchV.Input()) },
	})
	a.registry.AddGlobal("profile", &keys.Action{
		Rune: 'p', Key: tcell.KeyRune,
		Description: "p:profile", Visible: true,
		Handler: func() { a.showPage("profile", a.profileV) },
	})
	a.registry.AddView("profile", "logout", &keys.Action{
		Rune: 'x', Key: tcell.KeyRune,
		Description: "x:logout", Visible: true,
		Handler: func() { a.logout() },
	})
	a.registry.AddView("conversations", "add", &keys.Action{
		Rune: 'a', Key: tcell.KeyRune,
		Description: "a:add", Visible: true,
		Handler: func() { a.showPage("connect", a.connectV.Input()) },
	})
	a.registry.AddView("conversations", "filter", &keys.Action{
		Rune: '/', Key: tcell.KeyRune,
		Description: "/:filter", Visible: true,
		Handler: func() { a.app.SetFocus(a.filter) },
	})
	a.registry.AddView("chat", "write", &keys.Action{
		Rune: 'i', Key: tcell.KeyRune,
		Description: "i:write", Visible: true,
		Handler: func() { a.app.SetFocus(a.composer.InputField) },
	})
	a.registry.AddView("chat", "older", &keys.Action{
		Rune: 'o', Key: tcell.KeyRune,
		Description: "o:older", Visible: true,
		Handler: func() { a.loadOlder() },
	})
}

func (a *App) setupCallbacks() {
	a.convList.SetSelectedFunc(func(row, col int) {
		if c, ok := a.convList.Selected(); ok {
			a.openConversation(c)
		}
	})

	a.composer.SetOnKeystroke(func() {
		a.debouncer.Keystroke()
	})

	a.composer.SetOnSend(func(text string) {
		a.debouncer.Stop()
		a.sendInput(text)
	})

	a.searchV.Results().SetSelectedFunc(func(row, col int) {
		a.openSearchResult()
	})

	a.searchV.SetOnQuery(func(query string) {
		go func() {
			results, err := a.db.SearchMessages(query, "", 50)
			if err != nil {
				a.flash.Set("Search failed: "+err.Error(), model.LevelError, flashDuration)
				return
			}
			a.app.QueueUpdateDraw(func() {
				a.searchV.Update(results)
				a.app.SetFocus(a.searchV.Results())
			})
		}()
	})

	a.connectV.SetOnSubmit(func(code string) {
		go func() {
			if err := a.delivery.Request(a.ctx, code); err != nil {
				a.flash.Set("Request failed: "+err.Error(), model.LevelError, flashDuration)
			}
			a.app.QueueUpdateDraw(func() {
				a.pages.SwitchToPage("conversations")
				a.app.SetFocus(a.convList)
				a.updateHints()
				a.renderStatus()
			})
		}()
	})
}

// openSearchResult jumps from a search hit to its conversation. The
// directory is tried first; a conversation only present in the archive
// still opens, with history served from the local store.
func (a *App) openSearchResult() {
	convID, _ := a.searchV.SelectedResult()
	if convID == "" {
		return
	}
	if c, ok := a.dir.Get(convID); ok {
		a.openConversation(c)
		return
	}
	go func() {
		row, err := a.db.GetConversation(convID)
		if err != nil || row == nil {
			a.flash.Set("Conversation not found", model.LevelError, flashDuration)
			a.app.QueueUpdateDraw(a.renderStatus)
			return
		}
		c := archive.Conversations([]store.Conversation{*row})[0]
		a.app.QueueUpdateDraw(func() {
			a.openConversation(c)
		})
	}()
}

func (a *App) setupLayout() {
	a.filter = tview.NewInputField().
		SetLabel(" / ").
		SetFieldWidth(0)
	a.filter.SetChangedFunc(func(term string) {
		a.convList.Update(a.dir.Filter(term))
	})
	a.filter.SetDoneFunc(func(key tcell.Key) {
		a.app.SetFocus(a.convList)
	})

	listFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.convList, 0, 1, true).
		AddItem(a.filter, 1, 0, false)

	chatFlex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.msgView, 0, 1, false).
		AddItem(a.composer, 1, 0, false)

	a.pages.AddPage("conversations", listFlex, true, true)
	a.pages.AddPage("chat", chatFlex, true, false)
	a.pages.AddPage("search", a.searchV, true, false)
	a.pages.AddPage("profile", a.profileV, true, false)
	a.pages.AddPage("connect", a.connectV, true, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.pages, 0, 1, true).
		AddItem(a.statusBar, 1, 0, false)

	a.app.SetRoot(root, true)

	a.app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		a.screen = screen
		return false
	})

	a.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		currentPage, _ := a.pages.GetFrontPage()

		if event.Key() == tcell.KeyEscape {
			switch currentPage {
			case "chat", "search", "profile", "connect":
				a.leaveChat()
				a.pages.SwitchToPage("conversations")
				a.app.SetFocus(a.convList)
				a.updateHints()
				return nil
			}
		}

		// Let text input widgets handle all keys normally.
		focused := a.app.GetFocus()
		if _, ok := focused.(*tview.InputField); ok {
			return event
		}

		if a.registry.HandleEvent(currentPage, event) {
			return nil
		}

		return event
	})
}

// openConversation switches the timeline to the selected conversation and
// hydrates it. Rendering happens when the hydration event comes back; if
// the fetch fails, archived history is shown instead.
func (a *App) openConversation(c chat.Conversation) {
	a.activeFriend = c.Friend
	a.tl.SetActive(c.ID)
	a.msgView.SetFriend(c.Friend.Username)
	a.msgView.SetTyping(a.tracker.IsTyping(c.Friend.ID))
	a.msgView.ShowLoading()
	a.pages.SwitchToPage("chat")
	a.app.SetFocus(a.composer.InputField)
	a.updateHints()

	go func() {
		if err := a.tl.FetchLatest(a.ctx, c.ID); err != nil {
			a.flash.Set("Load failed, showing archived history", model.LevelError, flashDuration)
			rows, derr := a.db.ListMessages(c.ID, 0, 50)
			a.app.QueueUpdateDraw(func() {
				if derr == nil {
					a.msgView.Update(archive.Messages(rows))
					a.msgView.ScrollToEnd()
				}
				a.renderStatus()
			})
		}
	}()
}

// leaveChat clears the active conversation so live appends and the typing
// signal stop targeting it.
func (a *App) leaveChat() {
	a.debouncer.Stop()
	a.tl.SetActive("")
	a.activeFriend = chat.Friend{}
}

// loadOlder pages further into history, keeping the viewport anchored on
// the rows the user was reading.
func (a *App) loadOlder() {
	convID := a.tl.Active()
	if convID == "" || !a.tl.HasMore(convID) || a.tl.Loading(convID) {
		return
	}
	top, _ := a.msgView.GetScrollOffset()
	oldLines := a.msgView.Lines()

	go func() {
		if err := a.tl.FetchOlder(a.ctx, convID); err != nil {
			a.flash.Set("Load failed: "+err.Error(), model.LevelError, flashDuration)
			a.app.QueueUpdateDraw(a.renderStatus)
			return
		}
		a.app.QueueUpdateDraw(func() {
			a.msgView.Update(a.tl.Flatten(convID))
			a.msgView.AnchorAfterPrepend(top, oldLines)
		})
	}()
}

// sendInput parses composer input: /loc and /img commands, anything else
// is a plain text message.
func (a *App) sendInput(text string) {
	convID := a.tl.Active()
	if convID == "" || a.activeFriend.ID == "" {
		return
	}

	switch {
	case strings.HasPrefix(text, "/loc "):
		c := chat.ParseContent("geo:" + strings.TrimSpace(strings.TrimPrefix(text, "/loc ")))
		if c.Kind != chat.ContentLocation {
			a.flash.Set("Usage: /loc <lat>,<lng>", model.LevelError, flashDuration)
			a.renderStatus()
			return
		}
		a.deliver(func() error { return a.delivery.SendLocation(convID, a.activeFriend.ID, c.Lat, c.Lng) })
	case strings.HasPrefix(text, "/img "):
		path := strings.TrimSpace(strings.TrimPrefix(text, "/img "))
		a.sendImage(convID, a.activeFriend.ID, path)
	default:
		a.deliver(func() error { return a.delivery.SendText(convID, a.activeFriend.ID, text) })
	}
}

// sendImage uploads the file over REST, then emits the returned URL.
func (a *App) sendImage(convID, friendID, path string) {
	go func() {
		f, err := os.Open(path)
		if err != nil {
			a.flash.Set("Upload failed: "+err.Error(), model.LevelError, flashDuration)
			a.app.QueueUpdateDraw(a.renderStatus)
			return
		}
		defer func() { _ = f.Close() }()

		url, err := a.client.UploadImage(a.ctx, filepath.Base(path), f)
		if err != nil {
			a.flash.Set("Upload failed: "+err.Error(), model.LevelError, flashDuration)
			a.app.QueueUpdateDraw(a.renderStatus)
			return
		}
		if err := a.delivery.SendImage(convID, friendID, url); err != nil {
			a.flash.Set("Send failed: "+err.Error(), model.LevelError, flashDuration)
		}
		a.app.QueueUpdateDraw(a.renderStatus)
	}()
}

func (a *App) deliver(send func() error) {
	go func() {
		if err := send(); err != nil {
			a.flash.Set("Send failed: "+err.Error(), model.LevelError, flashDuration)
			a.app.QueueUpdateDraw(a.renderStatus)
		}
	}()
}

// emitTyping is the debouncer's sink: it targets whatever conversation is
// active at signal time.
func (a *App) emitTyping(isTyping bool) {
	convID := a.tl.Active()
	if convID == "" || a.activeFriend.ID == "" {
		return
	}
	if err := a.delivery.Typing(convID, a.activeFriend.ID, isTyping); err != nil {
		a.logger.Debug("typing signal failed", zap.Error(err))
	}
}

// logout invalidates the token server-side and exits; the fx teardown
// disconnects the session and releases the profile.
func (a *App) logout() {
	go func() {
		if err := a.client.Logout(a.ctx); err != nil {
			a.logger.Warn("logout failed", zap.Error(err))
		}
		a.app.Stop()
	}()
}

func (a *App) showPage(name string, focus tview.Primitive) {
	a.pages.SwitchToPage(name)
	a.app.SetFocus(focus)
	a.updateHints()
}

// updateHints refreshes the status bar with the frontmost page's bindings.
func (a *App) updateHints() {
	page, _ := a.pages.GetFrontPage()
	a.statusBar.SetHints(a.registry.Hints(page))
}

func (a *App) renderStatus() {
	msg, level := a.flash.Get()
	a.statusBar.SetFlash(msg, level)
}

// Run starts the TUI application and its bus event loop.
func (a *App) Run() error {
	a.startEventLoop()

	// The session connected and the directory hydrated during startup,
	// before this loop subscribed.
	a.app.QueueUpdateDraw(func() {
		a.statusBar.SetConnection("ONLINE")
		a.convList.Update(a.dir.Snapshot())
		a.updateHints()
	})

	return a.app.Run()
}

// startEventLoop consumes reducer and session events and repaints.
func (a *App) startEventLoop() {
	dirCh, dirUnsub := a.bus.Subscribe(bus.NSDirectory, 64)
	tlCh, tlUnsub := a.bus.Subscribe(bus.NSTimeline, 64)
	prCh, prUnsub := a.bus.Subscribe(bus.NSPresence, 64)
	sessCh, sessUnsub := a.bus.Subscribe(bus.NSSession, 16)
	noticeCh, noticeUnsub := a.bus.Subscribe(bus.NSNotice, 64)
	convCh, convUnsub := a.bus.Subscribe(bus.NSConversation, 64)

	go func() {
		defer dirUnsub()
		defer tlUnsub()
		defer prUnsub()
		defer sessUnsub()
		defer noticeUnsub()
		defer convUnsub()

		for {
			select {
			case <-dirCh:
				a.app.QueueUpdateDraw(func() {
					a.convList.Update(a.dir.Filter(a.filter.GetText()))
				})
			case evt := <-tlCh:
				a.handleTimelineEvent(evt)
			case evt := <-prCh:
				if p, ok := evt.Payload.(presence.TypingEvent); ok {
					a.app.QueueUpdateDraw(func() {
						if p.UserID != a.activeFriend.ID {
							return
						}
						// Reveal the indicator when the user is already
						// reading the newest messages.
						reveal := p.IsTyping && a.msgView.AtBottom()
						a.msgView.SetTyping(p.IsTyping)
						if reveal {
							a.msgView.ScrollToEnd()
						}
					})
				}
			case evt := <-sessCh:
				a.handleSessionEvent(evt)
			case evt := <-noticeCh:
				if msg, ok := evt.Payload.(string); ok {
					level := model.LevelInfo
					if evt.Kind == "notice.error" {
						level = model.LevelError
					}
					a.flash.Set(msg, level, flashDuration)
					a.app.QueueUpdateDraw(a.renderStatus)
				}
			case evt := <-convCh:
				if evt.Kind == transport.KindMessage {
					if p, ok := evt.Payload.(chat.NewMessage); ok {
						a.handleIncoming(p)
					}
				}
			case <-a.ctx.Done():
				return
			}
		}
	}()
}

func (a *App) handleTimelineEvent(evt bus.Event) {
	switch evt.Kind {
	case "timeline.hydrated":
		p, ok := evt.Payload.(timeline.PageEvent)
		if !ok || p.ConversationID != a.tl.Active() {
			return
		}
		// Seeing the history counts as reading it.
		go func() {
			if err := a.delivery.MarkAsRead(p.ConversationID, a.activeFriend.ID); err != nil {
				a.logger.Debug("mark as read failed", zap.Error(err))
			}
		}()
		a.app.QueueUpdateDraw(func() {
			a.msgView.Update(a.tl.Flatten(p.ConversationID))
			if a.tl.ConsumeInitialScroll(p.ConversationID) {
				a.msgView.ScrollToEnd()
			}
		})
	case "timeline.appended":
		p, ok := evt.Payload.(timeline.AppendEvent)
		if !ok || p.ConversationID != a.tl.Active() {
			return
		}
		a.app.QueueUpdateDraw(func() {
			pinned := a.msgView.AtBottom()
			a.msgView.Update(a.tl.Flatten(p.ConversationID))
			if pinned {
				a.msgView.ScrollToEnd()
			}
		})
		// Every append while the conversation is open counts as reading
		// it, own echoes included; the server treats it as idempotent.
		go func() {
			if err := a.delivery.MarkAsRead(p.ConversationID, a.activeFriend.ID); err != nil {
				a.logger.Debug("mark as read failed", zap.Error(err))
			}
		}()
	}
}

func (a *App) handleSessionEvent(evt bus.Event) {
	var state string
	switch evt.Kind {
	case transport.KindConnected:
		state = "ONLINE"
	case transport.KindReconnecting:
		state = "RECONNECTING"
	case transport.KindDisconnected:
		state = "OFFLINE"
		a.flash.Set("Connection lost", model.LevelError, flashDuration)
	default:
		return
	}
	a.app.QueueUpdateDraw(func() {
		a.statusBar.SetConnection(state)
		a.renderStatus()
	})
}

// handleIncoming rings the terminal bell for messages from other users.
func (a *App) handleIncoming(p chat.NewMessage) {
	if !a.sound || p.Message.Sender.ID == a.identity.ID {
		return
	}
	if a.screen != nil {
		_ = a.screen.Beep()
	}
}

// Stop gracefully shuts down the TUI.
func (a *App) Stop() {
	a.cancel()
	a.app.Stop()
}
