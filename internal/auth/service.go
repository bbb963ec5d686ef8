package auth

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"authgate.gg/internal/config"
	"authgate.gg/internal/store"
)

// Service executes binding workflow operations. Every operation schedules its
// whole read-check-write sequence as one authority unit, so quota and
// uniqueness checks are serialized against the writes they guard.
type Service struct {
	authority *Authority
	store     *store.Store
	cfg       config.Config
	codes     *codes
	guests    *guests
	effects   Effects
	log       *log.Logger
	now       func() time.Time
}

func NewService(a *Authority, st *store.Store, cfg config.Config, effects Effects, logger *log.Logger) *Service {
	if effects == nil {
		effects = NopEffects{}
	}
	now := time.Now
	return &Service{
		authority: a,
		store:     st,
		cfg:       cfg,
		codes:     newCodes(cfg.Binding.CodeLength, time.Duration(cfg.Binding.CodeExpirationSec)*time.Second, now),
		guests:    newGuests(cfg.GuestMode.RestrictedActions, cfg.GuestMode.AllowedCommands),
		effects:   effects,
		log:       logger,
		now:       now,
	}
}

// BindResult reports a successful (or idempotent) bind.
type BindResult struct {
	PlayerName   string
	AlreadyBound bool
}

// BotBindResult reports a successful bot bind with quota usage.
type BotBindResult struct {
	Name  string
	Count int
	Limit int // 0 disabled, <0 unlimited
}

// BotListResult is an owner's current bots with the quota summary.
type BotListResult struct {
	Names []string
	Limit int
}

// ------------------------------------------------------------- operations

// BindByCode binds the player identified by a verification code to qq.
func (s *Service) BindByCode(ctx context.Context, qq int64, code string) (BindResult, error) {
	var res BindResult
	var opErr error
	if err := s.authority.Do(ctx, func() { res, opErr = s.bindByCode(qq, code) }); err != nil {
		return BindResult{}, err
	}
	return res, opErr
}

func (s *Service) bindByCode(qq int64, code string) (BindResult, error) {
	player, ok := s.codes.FindPlayer(code)
	if !ok {
		return BindResult{}, Validation("bind.invalid_code")
	}
	p, found, err := s.store.PlayerByUUID(player)
	if err != nil {
		return BindResult{}, fmt.Errorf("lookup player: %w", err)
	}
	if !found {
		return BindResult{}, Validation("bind.invalid_code")
	}
	if p.QQ == qq {
		// Idempotent rebind: no mutation, code not consumed.
		return BindResult{PlayerName: p.Name, AlreadyBound: true}, nil
	}
	if p.QQ != 0 {
		return BindResult{}, Validation("bind.already_other")
	}
	if err := s.checkGroupMembership(qq); err != nil {
		return BindResult{}, err
	}
	if err := s.checkQuota(qq, "bind.limit_reached"); err != nil {
		return BindResult{}, err
	}
	if err := s.store.SetBinding(p.UUID, qq); err != nil {
		return BindResult{}, fmt.Errorf("set binding: %w", err)
	}
	s.codes.Invalidate(p.UUID)
	s.clearGuest(p.UUID)
	return BindResult{PlayerName: p.Name}, nil
}

// RegisterByAdmin binds a named player to a QQ without a verification code.
// Same target invariants as BindByCode; never consumes a code.
func (s *Service) RegisterByAdmin(ctx context.Context, targetQQ int64, playerName string) (BindResult, error) {
	var res BindResult
	var opErr error
	if err := s.authority.Do(ctx, func() { res, opErr = s.registerByAdmin(targetQQ, playerName) }); err != nil {
		return BindResult{}, err
	}
	return res, opErr
}

func (s *Service) registerByAdmin(targetQQ int64, playerName string) (BindResult, error) {
	p, found, err := s.store.PlayerByName(playerName)
	if err != nil {
		return BindResult{}, fmt.Errorf("lookup player: %w", err)
	}
	if !found {
		return BindResult{}, Validation("register.player_not_found", "player", playerName)
	}
	if p.QQ == targetQQ {
		return BindResult{PlayerName: p.Name, AlreadyBound: true}, nil
	}
	if p.QQ != 0 {
		return BindResult{}, Validation("register.already_other",
			"player", p.Name, "qq", strconv.FormatInt(p.QQ, 10))
	}
	if err := s.checkQuota(targetQQ, "register.limit_reached"); err != nil {
		return BindResult{}, err
	}
	if err := s.store.SetBinding(p.UUID, targetQQ); err != nil {
		return BindResult{}, fmt.Errorf("set binding: %w", err)
	}
	s.clearGuest(p.UUID)
	return BindResult{PlayerName: p.Name}, nil
}

// checkGroupMembership enforces the optional group-required policy on the
// self-service bind path. Admin registration bypasses it.
func (s *Service) checkGroupMembership(qq int64) error {
	if !s.cfg.Binding.ForceGroupBinding {
		return nil
	}
	groups := s.cfg.RosterGroups()
	if len(groups) == 0 {
		return nil
	}
	ok, err := s.store.IsMemberOfAny(qq, groups)
	if err != nil {
		return fmt.Errorf("roster lookup: %w", err)
	}
	if !ok {
		return Validation("bind.not_in_group")
	}
	return nil
}

func (s *Service) checkQuota(qq int64, key string) error {
	max := s.cfg.Binding.MaxAccountsPerQQ
	n, err := s.store.CountByQQ(qq)
	if err != nil {
		return fmt.Errorf("count bindings: %w", err)
	}
	if n >= max {
		return Validation(key,
			"qq", strconv.FormatInt(qq, 10),
			"max", strconv.Itoa(max))
	}
	return nil
}

// BindBot creates a derived identity owned by the player bound to qq.
func (s *Service) BindBot(ctx context.Context, qq int64, botName string) (BotBindResult, error) {
	var res BotBindResult
	var opErr error
	if err := s.authority.Do(ctx, func() { res, opErr = s.bindBot(qq, botName) }); err != nil {
		return BotBindResult{}, err
	}
	return res, opErr
}

func (s *Service) bindBot(qq int64, botName string) (BotBindResult, error) {
	owner, err := s.requireOwner(qq)
	if err != nil {
		return BotBindResult{}, err
	}
	limit := s.cfg.Binding.MaxBotsPerPlayer
	if limit == 0 {
		return BotBindResult{}, Validation("bot.disabled")
	}
	n, err := s.store.CountBotsByOwner(owner.Name)
	if err != nil {
		return BotBindResult{}, fmt.Errorf("count bots: %w", err)
	}
	if limit > 0 && n >= limit {
		return BotBindResult{}, Validation("bot.limit_reached",
			"count", strconv.Itoa(n), "max", strconv.Itoa(limit))
	}
	if prefix := s.cfg.Binding.BotNamePrefix; prefix != "" && !strings.HasPrefix(botName, prefix) {
		return BotBindResult{}, Validation("bot.bad_prefix", "prefix", prefix)
	}
	if _, exists, err := s.store.BotByName(botName); err != nil {
		return BotBindResult{}, fmt.Errorf("lookup bot: %w", err)
	} else if exists {
		return BotBindResult{}, Validation("bot.name_taken", "name", botName)
	}
	if err := s.store.CreateBot(botName, owner.Name, s.now()); err != nil {
		return BotBindResult{}, fmt.Errorf("create bot: %w", err)
	}
	return BotBindResult{Name: botName, Count: n + 1, Limit: limit}, nil
}

// UnbindBot removes a derived identity owned by the player bound to qq.
func (s *Service) UnbindBot(ctx context.Context, qq int64, botName string) error {
	var opErr error
	if err := s.authority.Do(ctx, func() { opErr = s.unbindBot(qq, botName) }); err != nil {
		return err
	}
	return opErr
}

func (s *Service) unbindBot(qq int64, botName string) error {
	owner, err := s.requireOwner(qq)
	if err != nil {
		return err
	}
	bot, found, err := s.store.BotByName(botName)
	if err != nil {
		return fmt.Errorf("lookup bot: %w", err)
	}
	if !found {
		return Validation("bot.not_found", "name", botName)
	}
	if !strings.EqualFold(bot.OwnerName, owner.Name) {
		return Validation("bot.not_owner", "name", botName)
	}
	if err := s.store.DeleteBot(bot.Name); err != nil {
		return fmt.Errorf("delete bot: %w", err)
	}
	return nil
}

// ListBots lists the derived identities of the player bound to qq, in
// creation order.
func (s *Service) ListBots(ctx context.Context, qq int64) (BotListResult, error) {
	var res BotListResult
	var opErr error
	if err := s.authority.Do(ctx, func() { res, opErr = s.listBots(qq) }); err != nil {
		return BotListResult{}, err
	}
	return res, opErr
}

func (s *Service) listBots(qq int64) (BotListResult, error) {
	owner, err := s.requireOwner(qq)
	if err != nil {
		return BotListResult{}, err
	}
	bots, err := s.store.BotsByOwner(owner.Name)
	if err != nil {
		return BotListResult{}, fmt.Errorf("list bots: %w", err)
	}
	res := BotListResult{Limit: s.cfg.Binding.MaxBotsPerPlayer}
	for _, b := range bots {
		res.Names = append(res.Names, b.Name)
	}
	return res, nil
}

func (s *Service) requireOwner(qq int64) (store.Player, error) {
	p, found, err := s.store.FirstPlayerByQQ(qq)
	if err != nil {
		return store.Player{}, fmt.Errorf("lookup owner: %w", err)
	}
	if !found {
		return store.Player{}, Validation("bot.not_bound")
	}
	return p, nil
}

// --------------------------------------------------------- in-world events

// OnJoin records a joining player and applies or clears guest state.
func (s *Service) OnJoin(ctx context.Context, name string, player uuid.UUID) error {
	return s.authority.Do(ctx, func() { s.onJoin(name, player) })
}

func (s *Service) onJoin(name string, player uuid.UUID) {
	if err := s.store.UpsertPlayer(name, player, s.now()); err != nil {
		s.log.Printf("[auth] upsert player %s: %v", name, err)
	}
	if s.whitelisted(name) {
		s.guests.remove(player)
		s.effects.Welcome(player, name)
		return
	}
	if isBot, err := s.store.IsBot(player); err != nil {
		s.log.Printf("[auth] bot check %s: %v", name, err)
	} else if isBot {
		s.guests.remove(player)
		return
	}
	p, found, err := s.store.PlayerByName(name)
	if err != nil {
		s.log.Printf("[auth] lookup %s: %v", name, err)
		return
	}
	if found && p.QQ != 0 {
		s.guests.remove(player)
		s.effects.Welcome(player, name)
		return
	}
	s.guests.add(player)
	s.effects.ApplyGuest(player, name, s.codes.OrCreate(player))
}

// OnQuit drops a player from the guest set. Codes survive a reconnect.
func (s *Service) OnQuit(ctx context.Context, player uuid.UUID) error {
	return s.authority.Do(ctx, func() { s.guests.remove(player) })
}

// OnBindingSuccess is the notification entry point for collaborators (the
// REST surface) that bind through their own path.
func (s *Service) OnBindingSuccess(ctx context.Context, player uuid.UUID) error {
	return s.authority.Do(ctx, func() { s.clearGuest(player) })
}

func (s *Service) clearGuest(player uuid.UUID) {
	if !s.guests.contains(player) {
		return
	}
	s.guests.remove(player)
	s.effects.ClearGuest(player)
}

// CheckAction evaluates a guest restriction. A vetoed action surfaces the
// player's verification code as a prompt.
func (s *Service) CheckAction(ctx context.Context, player uuid.UUID, cat ActionCategory, text string) (allowed bool, err error) {
	err = s.authority.Do(ctx, func() {
		if s.guests.vetoes(player, cat, text) {
			s.effects.Prompt(player, s.codes.OrCreate(player))
			return
		}
		allowed = true
	})
	return allowed, err
}

// IsGuest reports current guest-set membership.
func (s *Service) IsGuest(ctx context.Context, player uuid.UUID) (bool, error) {
	var in bool
	err := s.authority.Do(ctx, func() { in = s.guests.contains(player) })
	return in, err
}

// GuestCount is the current guest-set size, for metrics.
func (s *Service) GuestCount(ctx context.Context) (int, error) {
	var n int
	err := s.authority.Do(ctx, func() { n = s.guests.count() })
	return n, err
}

func (s *Service) whitelisted(name string) bool {
	for _, w := range s.cfg.Whitelist {
		if strings.EqualFold(w, name) {
			return true
		}
	}
	return false
}

// ----------------------------------------------------------- REST surface

// Status reads one player record.
func (s *Service) Status(ctx context.Context, name string) (store.Player, bool, error) {
	var p store.Player
	var found bool
	var opErr error
	if err := s.authority.Do(ctx, func() { p, found, opErr = s.store.PlayerByName(name) }); err != nil {
		return store.Player{}, false, err
	}
	return p, found, opErr
}

// BindDirect binds a named player to a QQ, applying the same invariants as
// BindByCode, and settles guest state. Used by the REST collaborator.
func (s *Service) BindDirect(ctx context.Context, name string, qq int64) (BindResult, error) {
	return s.RegisterByAdmin(ctx, qq, name)
}

// UnbindDirect clears a player's binding. Guest state is re-evaluated on the
// player's next join.
func (s *Service) UnbindDirect(ctx context.Context, name string) error {
	var opErr error
	if err := s.authority.Do(ctx, func() { opErr = s.unbindDirect(name) }); err != nil {
		return err
	}
	return opErr
}

func (s *Service) unbindDirect(name string) error {
	p, found, err := s.store.PlayerByName(name)
	if err != nil {
		return fmt.Errorf("lookup player: %w", err)
	}
	if !found {
		return Validation("register.player_not_found", "player", name)
	}
	if err := s.store.SetBinding(p.UUID, 0); err != nil {
		return fmt.Errorf("clear binding: %w", err)
	}
	return nil
}
